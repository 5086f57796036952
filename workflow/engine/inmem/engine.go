// Package inmem is the Workflow Engine's (C9) default backend: a
// goroutine-per-ready-task scheduler that dispatches a WorkflowTemplate's
// DAG directly against a specialist.Pool in this process. Grounded on the
// teacher's runtime/agent/engine/inmem package (an in-memory Engine
// implementation explicitly documented as suitable for local development
// and tests, not replay-safe), generalized from a single-agent plan/tool
// engine to a multi-task DAG scheduler with per-task retry and
// dependency-failure cascading.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentfleet/orchestrator/specialist"
	"github.com/agentfleet/orchestrator/telemetry"
	"github.com/agentfleet/orchestrator/workflow"
	"github.com/agentfleet/orchestrator/workflow/dag"
	"github.com/agentfleet/orchestrator/workflow/retry"
)

type run struct {
	exec    *workflow.Execution
	graph   *dag.Graph
	tmpl    workflow.Template
	cfg     workflow.Config
	done    map[string]chan struct{}
	cancel   context.CancelFunc
	canceled atomic.Bool

	// mu guards every field of exec and of the *workflow.TaskRecord values
	// it holds: per-task goroutines in runTask write them concurrently
	// with reads from GetExecutionStatus/GetWorkflowTasks/ListExecutions
	// and friends, mirroring the teacher's handle.mu/eng.mu split for the
	// same shared-result/shared-status-map shape.
	mu sync.RWMutex
}

// snapshot returns a deep-enough copy of r.exec — its own fields plus a
// copy of every TaskRecord it points to — safe for a caller to read
// without holding r.mu.
func (r *run) snapshot() *workflow.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make(map[string]*workflow.TaskRecord, len(r.exec.Tasks))
	for name, rec := range r.exec.Tasks {
		cp := *rec
		tasks[name] = &cp
	}
	execCopy := *r.exec
	execCopy.Tasks = tasks
	return &execCopy
}

func (r *run) taskStatus(name string) workflow.TaskStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exec.Tasks[name].Status
}

// Engine implements workflow.Engine entirely in-process.
type Engine struct {
	pool    *specialist.Pool
	catalog *workflow.Catalog
	logger  telemetry.Logger

	mu   sync.RWMutex
	runs map[workflow.ExecutionID]*run
}

// New constructs an in-memory Engine dispatching tasks through pool
// against the templates in catalog.
func New(pool *specialist.Pool, catalog *workflow.Catalog, logger telemetry.Logger) *Engine {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Engine{pool: pool, catalog: catalog, logger: logger, runs: make(map[workflow.ExecutionID]*run)}
}

// ErrExecutionNotFound is returned when an ExecutionID has no run record.
var ErrExecutionNotFound = errors.New("workflow/inmem: execution not found")

func (e *Engine) ExecuteWorkflow(ctx context.Context, templateKey string, cfg workflow.Config) (workflow.ExecutionID, error) {
	tmpl, err := e.catalog.Lookup(templateKey)
	if err != nil {
		return "", err
	}

	nodes := make([]dag.Node, len(tmpl.Tasks))
	byName := make(map[string]workflow.Task, len(tmpl.Tasks))
	for i, t := range tmpl.Tasks {
		nodes[i] = dag.Node{Name: t.Name, Dependencies: t.Dependencies}
		byName[t.Name] = t
	}
	graph, err := dag.Build(nodes)
	if err != nil {
		return "", fmt.Errorf("workflow/inmem: invalid template %q: %w", templateKey, err)
	}

	id := workflow.NewExecutionID()
	exec := &workflow.Execution{
		ID: id, TemplateKey: templateKey, Status: workflow.ExecutionPreparing,
		StartTime: time.Now(), Tasks: make(map[string]*workflow.TaskRecord, len(tmpl.Tasks)),
	}
	for _, t := range tmpl.Tasks {
		onFailure := workflow.OnFailureCancel
		if ov, ok := cfg.TaskOverrides[t.Name]; ok && ov.OnFailure != "" {
			onFailure = ov.OnFailure
		}
		exec.Tasks[t.Name] = &workflow.TaskRecord{Name: t.Name, Status: workflow.TaskPending, OnFailure: onFailure}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{exec: exec, graph: graph, tmpl: tmpl, cfg: cfg, cancel: cancel, done: make(map[string]chan struct{}, len(tmpl.Tasks))}
	for _, name := range graph.Names() {
		r.done[name] = make(chan struct{})
	}

	e.mu.Lock()
	e.runs[id] = r
	e.mu.Unlock()

	r.mu.Lock()
	exec.Status = workflow.ExecutionRunning
	r.mu.Unlock()
	maxConcurrent := cfg.MaxConcurrentTasks
	if maxConcurrent <= 0 {
		maxConcurrent = len(tmpl.Tasks)
	}
	if !cfg.EnableParallelExecution {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for _, name := range graph.Names() {
		t := byName[name]
		wg.Add(1)
		go e.runTask(runCtx, r, t, sem, &wg)
	}
	go func() {
		wg.Wait()
		e.finalize(r)
	}()

	return id, nil
}

func (e *Engine) runTask(ctx context.Context, r *run, t workflow.Task, sem chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(r.done[t.Name])

	rec := r.exec.Tasks[t.Name]

	blocked := t.Dependencies != nil
	for _, dep := range t.Dependencies {
		select {
		case <-r.done[dep]:
		case <-ctx.Done():
			e.setStatus(r, rec, workflow.TaskCancelled)
			return
		}
	}
	if blocked {
		e.setStatus(r, rec, workflow.TaskBlocked)
	}

	var depsFailed bool
	for _, dep := range t.Dependencies {
		switch r.taskStatus(dep) {
		case workflow.TaskFailed, workflow.TaskCancelled:
			depsFailed = true
		}
	}
	if depsFailed && rec.OnFailure != workflow.OnFailureContinue {
		e.setStatus(r, rec, workflow.TaskCancelled)
		return
	}

	if ov, ok := r.cfg.TaskOverrides[t.Name]; ok && ov.Skip {
		e.setStatus(r, rec, workflow.TaskSkipped)
		return
	}

	if ctx.Err() != nil {
		e.setStatus(r, rec, workflow.TaskCancelled)
		return
	}

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		e.setStatus(r, rec, workflow.TaskCancelled)
		return
	}

	e.setStatus(r, rec, workflow.TaskInProgress)
	r.mu.Lock()
	rec.StartTime = time.Now()
	r.mu.Unlock()

	taskCtx := ctx
	if ov, ok := r.cfg.TaskOverrides[t.Name]; ok && ov.TimeoutOverride > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, ov.TimeoutOverride)
		defer cancel()
	}

	ec := specialist.ExecContext{
		TaskName: t.Name, WorkingDir: r.cfg.WorkingDir, Description: t.Description,
		Params: taskParams(t, r.cfg),
	}

	rp := r.cfg.RetryPolicy
	if rp.MaxAttempts == 0 {
		rp = retry.DefaultConfig()
	}
	attempt := 0
	taskKey := fmt.Sprintf("%s/%s", r.exec.ID, t.Name)
	runErr := retry.Do(taskCtx, rp, isRetryableTaskErr, func(rctx context.Context) error {
		attempt++
		r.mu.Lock()
		rec.Attempt = attempt
		r.mu.Unlock()
		if attempt > 1 {
			e.setStatus(r, rec, workflow.TaskRetrying)
		}
		result, err := e.pool.Execute(rctx, taskKey, t.Role, ec)
		if err != nil {
			return err
		}
		r.mu.Lock()
		rec.Result = &result
		r.mu.Unlock()
		return nil
	})

	r.mu.Lock()
	rec.EndTime = time.Now()
	r.mu.Unlock()
	if runErr != nil {
		r.mu.Lock()
		rec.Error = runErr.Error()
		r.mu.Unlock()
		if errors.Is(runErr, context.Canceled) {
			e.setStatus(r, rec, workflow.TaskCancelled)
			return
		}
		e.setStatus(r, rec, workflow.TaskFailed)
		return
	}
	r.mu.Lock()
	rec.ProgressPercentage = 100
	r.mu.Unlock()
	e.setStatus(r, rec, workflow.TaskCompleted)
}

func taskParams(t workflow.Task, cfg workflow.Config) map[string]string {
	if ov, ok := cfg.TaskOverrides[t.Name]; ok && len(ov.Params) > 0 {
		out := make(map[string]string, len(ov.Params))
		for k, v := range ov.Params {
			out[k] = v
		}
		return out
	}
	return nil
}

func isRetryableTaskErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, specialist.ErrNoAgentForRole) {
		return false
	}
	return true
}

func (e *Engine) setStatus(r *run, rec *workflow.TaskRecord, s workflow.TaskStatus) {
	r.mu.Lock()
	rec.Status = s
	r.mu.Unlock()
}

func (e *Engine) finalize(r *run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec.EndTime = time.Now()
	var completed, failed []string
	var artifacts []string
	for _, name := range r.graph.Names() {
		rec := r.exec.Tasks[name]
		switch rec.Status {
		case workflow.TaskCompleted:
			completed = append(completed, name)
			if rec.Result != nil {
				artifacts = append(artifacts, rec.Result.Artifacts...)
			}
		case workflow.TaskFailed:
			failed = append(failed, name)
		}
	}
	sort.Strings(completed)
	sort.Strings(failed)
	r.exec.CompletedTasks = completed
	r.exec.FailedTasks = failed
	r.exec.Artifacts = artifacts

	switch {
	case r.canceled.Load():
		r.exec.Status = workflow.ExecutionCancelled
	case len(failed) > 0:
		r.exec.Status = workflow.ExecutionFailed
	default:
		r.exec.Status = workflow.ExecutionCompleted
	}
}

func (e *Engine) lookup(id workflow.ExecutionID) (*run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	return r, nil
}

func (e *Engine) GetExecutionStatus(_ context.Context, id workflow.ExecutionID) (*workflow.Execution, error) {
	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (e *Engine) GetWorkflowTasks(_ context.Context, id workflow.ExecutionID) (map[string]*workflow.TaskRecord, error) {
	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return r.snapshot().Tasks, nil
}

func (e *Engine) GetWorkflowResult(_ context.Context, id workflow.ExecutionID) (*workflow.Result, error) {
	r, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	exec := r.snapshot()
	return &workflow.Result{
		ExecutionID: id, Status: exec.Status,
		CompletedTasks: exec.CompletedTasks, FailedTasks: exec.FailedTasks, Artifacts: exec.Artifacts,
	}, nil
}

func (e *Engine) IsComplete(_ context.Context, id workflow.ExecutionID) (bool, error) {
	r, err := e.lookup(id)
	if err != nil {
		return false, err
	}
	r.mu.RLock()
	status := r.exec.Status
	r.mu.RUnlock()
	return status.Terminal(), nil
}

func (e *Engine) ListExecutions(_ context.Context, limit int) ([]*workflow.Execution, error) {
	e.mu.RLock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.RUnlock()

	out := make([]*workflow.Execution, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *Engine) GetExecutionStatistics(_ context.Context) (workflow.Statistics, error) {
	e.mu.RLock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.RUnlock()

	var stats workflow.Statistics
	for _, r := range runs {
		r.mu.RLock()
		status := r.exec.Status
		r.mu.RUnlock()
		stats.Total++
		switch status {
		case workflow.ExecutionRunning, workflow.ExecutionPreparing, workflow.ExecutionPaused:
			stats.Running++
		case workflow.ExecutionCompleted:
			stats.Completed++
		case workflow.ExecutionFailed:
			stats.Failed++
		case workflow.ExecutionCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (e *Engine) CancelExecution(_ context.Context, id workflow.ExecutionID) error {
	r, err := e.lookup(id)
	if err != nil {
		return err
	}
	r.canceled.Store(true)
	r.cancel()
	return nil
}
