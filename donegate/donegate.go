// Package donegate implements the Done Gate (C11): an ordered list of
// verification checks that gate the state graph's Test -> Done
// transition. Checks shell out via os/exec — the domain operation is
// literally "run a build/lint/test command and look at its exit code",
// so no third-party process-execution library in the pack improves on
// the standard library here. Structured check output is optionally
// validated against a JSON Schema via santhosh-tekuri/jsonschema.
package donegate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Check is one named verification step (spec.md §4.11).
type Check struct {
	Name         string
	Command      string
	Args         []string
	Timeout      time.Duration
	Required     bool
	ResultSchema *jsonschema.Schema // optional; validates structured stdout when set
}

// Outcome records one check's run result.
type Outcome struct {
	Name     string
	Passed   bool
	ExitCode int
	Stdout   string
	Stderr   string
	Findings map[string]any // decoded ResultSchema output, if any
}

// Verdict is the Done Gate's overall result for one verify() call.
type Verdict string

const (
	VerdictDone        Verdict = "done"
	VerdictReEnterFix  Verdict = "re_enter_fix"
	VerdictFailed      Verdict = "failed"
)

// Result is the outcome of Gate.Verify.
type Result struct {
	Verdict    Verdict
	CheckName  string // set for ReEnterFix/Failed
	Message    string
	Outcomes   []Outcome
}

// Gate runs an ordered list of checks against a working directory.
type Gate struct {
	checks []Check
}

// New constructs a Gate from an ordered check list.
func New(checks []Check) *Gate { return &Gate{checks: checks} }

// Verify runs every check in order against workingDir, per spec.md §4.11:
// all required checks pass -> Done; the first failing required check ->
// ReEnterFix; a check that cannot even run (not merely non-zero exit) ->
// Failed.
func (g *Gate) Verify(ctx context.Context, workingDir string) Result {
	outcomes := make([]Outcome, 0, len(g.checks))
	for _, c := range g.checks {
		outcome, execErr := runCheck(ctx, c, workingDir)
		if execErr != nil {
			return Result{Verdict: VerdictFailed, CheckName: c.Name, Message: execErr.Error(), Outcomes: outcomes}
		}
		outcomes = append(outcomes, outcome)
		if c.Required && !outcome.Passed {
			return Result{
				Verdict:   VerdictReEnterFix,
				CheckName: c.Name,
				Message:   fmt.Sprintf("required check %q failed: %s", c.Name, firstLine(outcome.Stderr, outcome.Stdout)),
				Outcomes:  outcomes,
			}
		}
	}
	return Result{Verdict: VerdictDone, Outcomes: outcomes}
}

func runCheck(ctx context.Context, c Check, workingDir string) (Outcome, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Command, c.Args...)
	cmd.Dir = workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	var passed bool
	switch {
	case runErr == nil:
		exitCode, passed = 0, true
	default:
		var exitErr *exec.ExitError
		if asExitError(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
			passed = false
		} else {
			// The process could not even start/run (missing binary, context
			// deadline at launch) — this is an execution error, not a
			// verification failure.
			return Outcome{}, fmt.Errorf("donegate: run check %q: %w", c.Name, runErr)
		}
	}

	outcome := Outcome{Name: c.Name, Passed: passed, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}
	if c.ResultSchema != nil && stdout.Len() > 0 {
		findings, err := validateFindings(c.ResultSchema, stdout.Bytes())
		if err == nil {
			outcome.Findings = findings
		}
	}
	return outcome, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func validateFindings(schema *jsonschema.Schema, raw []byte) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("donegate: decode check output: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("donegate: check output failed schema validation: %w", err)
	}
	m, _ := decoded.(map[string]any)
	return m, nil
}

func firstLine(candidates ...string) string {
	for _, c := range candidates {
		for i := 0; i < len(c); i++ {
			if c[i] == '\n' {
				return c[:i]
			}
		}
		if c != "" {
			return c
		}
	}
	return ""
}

// ProjectType selects a default check-set preset (spec.md §4.11).
type ProjectType string

const (
	ProjectGo     ProjectType = "go"
	ProjectNode   ProjectType = "node"
	ProjectCustom ProjectType = "custom"
)

// DefaultChecks returns the preset ordered check list for a project type.
// ProjectCustom returns an empty list for the caller to populate.
func DefaultChecks(pt ProjectType) []Check {
	switch pt {
	case ProjectGo:
		return []Check{
			{Name: "build", Command: "go", Args: []string{"build", "./..."}, Timeout: 2 * time.Minute, Required: true},
			{Name: "vet", Command: "go", Args: []string{"vet", "./..."}, Timeout: time.Minute, Required: true},
			{Name: "test", Command: "go", Args: []string{"test", "./..."}, Timeout: 5 * time.Minute, Required: true},
		}
	case ProjectNode:
		return []Check{
			{Name: "lint", Command: "npm", Args: []string{"run", "lint"}, Timeout: 2 * time.Minute, Required: true},
			{Name: "test", Command: "npm", Args: []string{"test"}, Timeout: 5 * time.Minute, Required: true},
		}
	default:
		return nil
	}
}
