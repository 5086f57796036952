// Package specialist implements the Specialist Pool (C8): role-keyed
// agent instances the Workflow Engine (C9) dispatches DAG tasks to.
// Grounded on tarsy's pkg/queue.WorkerPool — cancel-registry keyed by an
// identifier, an availability count derived from active work rather than
// a separate accounting structure, and a Health-style statistics
// snapshot — adapted from a pod-scoped session-queue worker pool to a
// role-keyed agent pool with a bounded concurrent-task budget instead of
// a fixed worker-goroutine count.
package specialist

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Role identifies a specialist's domain, per spec.md §4.8.
type Role string

const (
	RoleCode     Role = "code"
	RoleTest     Role = "test"
	RoleDeploy   Role = "deploy"
	RoleDocs     Role = "docs"
	RoleSecurity Role = "security"
)

// TaskResult is the outcome of one specialist execution.
type TaskResult struct {
	Success       bool
	Output        string
	FilesModified []string
	Artifacts     []string
	Metrics       map[string]float64
}

// ExecContext carries everything a specialist needs to run one task.
type ExecContext struct {
	TaskName    string
	WorkingDir  string
	Description string
	Params      map[string]string
}

// Agent implements the SpecialistAgent contract (spec.md §4.8).
type Agent interface {
	Role() Role
	Name() string
	CanHandle(ctx ExecContext) bool
	Execute(ctx context.Context, ec ExecContext) (TaskResult, error)
	EstimateDuration(ec ExecContext) time.Duration
	ValidateResult(r TaskResult) bool
}

// ErrNoAgentForRole is returned when the pool has no registered agent able
// to handle a role.
var ErrNoAgentForRole = fmt.Errorf("specialist: no agent registered for role")

// ErrPoolSaturated is returned when max_concurrent_tasks is already
// reached.
var ErrPoolSaturated = fmt.Errorf("specialist: pool at max_concurrent_tasks")

// Statistics reports pool-wide availability, mirroring the teacher's
// PoolHealth snapshot style.
type Statistics struct {
	Total     int
	Available int
}

// Pool allocates specialist agents on demand, bounded by
// max_concurrent_tasks (spec.md §4.8).
type Pool struct {
	mu                 sync.Mutex
	agents             []Agent
	maxConcurrentTasks int
	running            map[string]context.CancelFunc
}

// New constructs a Pool over a fixed agent roster.
func New(agents []Agent, maxConcurrentTasks int) *Pool {
	return &Pool{agents: agents, maxConcurrentTasks: maxConcurrentTasks, running: make(map[string]context.CancelFunc)}
}

// agentFor returns the first registered agent for role that can handle ec.
func (p *Pool) agentFor(role Role, ec ExecContext) (Agent, error) {
	for _, a := range p.agents {
		if a.Role() == role && a.CanHandle(ec) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAgentForRole, role)
}

// Statistics reports (total, available) per spec.md §4.8
// agent_pool_statistics: an agent is available iff not currently
// executing.
func (p *Pool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Statistics{Total: len(p.agents), Available: len(p.agents) - len(p.running)}
}

// Execute runs ec against the first capable agent for role, bounded by
// max_concurrent_tasks. taskKey identifies this run for cancellation via
// Cancel.
func (p *Pool) Execute(ctx context.Context, taskKey string, role Role, ec ExecContext) (TaskResult, error) {
	agent, err := p.agentFor(role, ec)
	if err != nil {
		return TaskResult{}, err
	}

	p.mu.Lock()
	if len(p.running) >= p.maxConcurrentTasks {
		p.mu.Unlock()
		return TaskResult{}, ErrPoolSaturated
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running[taskKey] = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.running, taskKey)
		p.mu.Unlock()
		cancel()
	}()

	result, err := agent.Execute(runCtx, ec)
	if err != nil {
		return TaskResult{}, err
	}
	if !agent.ValidateResult(result) {
		return result, fmt.Errorf("specialist: agent %s produced an invalid result for task %s", agent.Name(), taskKey)
	}
	return result, nil
}

// Cancel cancels a running task by key, returning true if it was found
// running on this pool.
func (p *Pool) Cancel(taskKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.running[taskKey]; ok {
		cancel()
		return true
	}
	return false
}

// EstimateDuration returns the first capable agent's duration estimate
// for ec, or zero if none can handle it.
func (p *Pool) EstimateDuration(role Role, ec ExecContext) time.Duration {
	agent, err := p.agentFor(role, ec)
	if err != nil {
		return 0
	}
	return agent.EstimateDuration(ec)
}
