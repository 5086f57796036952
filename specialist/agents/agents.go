// Package agents provides concrete SpecialistAgent implementations for
// the default roles (code, test, deploy, docs, security), each a thin
// os/exec wrapper over a configurable command — the same "run a shell
// command, capture output, check exit code" shape the Done Gate (C11)
// uses for its checks, reused here because a specialist's job at this
// layer of the system genuinely is running an external tool.
package agents

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/agentfleet/orchestrator/specialist"
)

// CommandAgent runs a single shell command against the task's working
// directory and reports success based on its exit code.
type CommandAgent struct {
	role      specialist.Role
	name      string
	command   string
	args      []string
	estimated time.Duration
}

// NewCommandAgent constructs a specialist.Agent that shells out to run
// command/args in the task's working directory.
func NewCommandAgent(role specialist.Role, name, command string, args []string, estimated time.Duration) *CommandAgent {
	return &CommandAgent{role: role, name: name, command: command, args: args, estimated: estimated}
}

func (a *CommandAgent) Role() specialist.Role { return a.role }
func (a *CommandAgent) Name() string          { return a.name }

// CanHandle accepts any task; a CommandAgent is a generic executor, the
// caller decides routing by role when configuring the pool.
func (a *CommandAgent) CanHandle(specialist.ExecContext) bool { return true }

func (a *CommandAgent) EstimateDuration(specialist.ExecContext) time.Duration { return a.estimated }

func (a *CommandAgent) Execute(ctx context.Context, ec specialist.ExecContext) (specialist.TaskResult, error) {
	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Dir = ec.WorkingDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	success := err == nil
	return specialist.TaskResult{
		Success: success,
		Output:  out.String(),
		Metrics: map[string]float64{"exit_success": boolToFloat(success)},
	}, nil
}

// ValidateResult accepts any result the command produced; failure is
// reported via TaskResult.Success, not a validation rejection.
func (a *CommandAgent) ValidateResult(specialist.TaskResult) bool { return true }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ specialist.Agent = (*CommandAgent)(nil)
