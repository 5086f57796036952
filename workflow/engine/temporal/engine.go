package temporal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/worker"
	tworkflow "go.temporal.io/sdk/workflow"

	"github.com/agentfleet/orchestrator/specialist"
	"github.com/agentfleet/orchestrator/telemetry"
	"github.com/agentfleet/orchestrator/workflow"
)

// Options configures the Temporal-backed Workflow Engine, mirroring the
// teacher's temporal.Options shape: either a pre-built Client or
// ClientOptions to lazily build one, plus WorkerOptions naming the
// default task queue.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, New builds one
	// lazily from ClientOptions.
	Client client.Client
	// ClientOptions configures a lazily-built client when Client is nil.
	ClientOptions *client.Options
	// TaskQueue is the queue this engine's worker polls and the queue
	// every workflow/activity is started on. Required.
	TaskQueue string
	// WorkerOptions is forwarded to worker.New.
	WorkerOptions worker.Options
	// DisableWorkerAutoStart skips starting the worker in New; the
	// caller must call Worker().Start() before executing any workflow.
	DisableWorkerAutoStart bool
	// DisableTracing skips installing the OTEL tracing interceptor.
	DisableTracing bool
	// Logger receives engine lifecycle logs.
	Logger telemetry.Logger
}

// Engine implements workflow.Engine on top of Temporal: dagWorkflow is the
// workflow function, RunSpecialistTask is the activity, and a Temporal
// query handler exposes live workflow.Execution state to
// GetExecutionStatus and friends.
type Engine struct {
	client      client.Client
	closeClient bool
	taskQueue   string
	worker      worker.Worker
	catalog     *workflow.Catalog
	logger      telemetry.Logger

	startOnce sync.Once

	mu    sync.RWMutex
	cache map[workflow.ExecutionID]*workflow.Execution
}

// New constructs a Temporal Engine, registers dagWorkflow and the
// specialist-dispatch activity against pool, and (unless
// DisableWorkerAutoStart) starts the worker immediately. Templates are
// resolved from catalog, exactly like the inmem backend, so both
// implementations of workflow.Engine take a template key rather than a
// template value.
func New(pool *specialist.Pool, catalog *workflow.Catalog, opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	workerOpts := opts.WorkerOptions
	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal engine: client options are required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		if !opts.DisableTracing {
			tracer, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
			if err != nil {
				return nil, fmt.Errorf("temporal engine: configure tracing interceptor: %w", err)
			}
			clientOpts.Interceptors = append(clientOpts.Interceptors, tracer)
			workerOpts.Interceptors = append(workerOpts.Interceptors, tracer)
		}
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: create client: %w", err)
		}
		closeClient = true
	}

	w := worker.New(cli, opts.TaskQueue, workerOpts)
	w.RegisterWorkflowWithOptions(dagWorkflow, tworkflow.RegisterOptions{Name: WorkflowName})
	activities := &taskActivities{pool: pool}
	w.RegisterActivityWithOptions(activities.RunSpecialistTask, tactivity.RegisterOptions{Name: ActivityName})

	e := &Engine{
		client: cli, closeClient: closeClient, taskQueue: opts.TaskQueue, catalog: catalog,
		worker: w, logger: logger, cache: make(map[workflow.ExecutionID]*workflow.Execution),
	}
	if !opts.DisableWorkerAutoStart {
		if err := e.Worker().Start(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Worker returns a controller over this engine's single worker, for
// callers that set DisableWorkerAutoStart and want manual lifecycle
// control.
func (e *Engine) Worker() *WorkerController { return &WorkerController{engine: e} }

// Close stops the worker (if started) and closes the client if this
// engine created it.
func (e *Engine) Close() {
	e.worker.Stop()
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
}

// ExecuteWorkflow resolves templateKey against this engine's catalog and
// starts a durable DAG execution.
func (e *Engine) ExecuteWorkflow(ctx context.Context, templateKey string, cfg workflow.Config) (workflow.ExecutionID, error) {
	tmpl, err := e.catalog.Lookup(templateKey)
	if err != nil {
		return "", err
	}

	id := workflow.NewExecutionID()
	opts := client.StartWorkflowOptions{ID: string(id), TaskQueue: e.taskQueue}
	if _, err := e.client.ExecuteWorkflow(ctx, opts, WorkflowName, dagWorkflowInput{
		TemplateKey: tmpl.Key, Tasks: tmpl.Tasks, Config: cfg,
	}); err != nil {
		return "", fmt.Errorf("temporal engine: start workflow: %w", err)
	}
	return id, nil
}

func (e *Engine) queryExecution(ctx context.Context, id workflow.ExecutionID) (*workflow.Execution, error) {
	val, err := e.client.QueryWorkflow(ctx, string(id), "", "execution")
	if err != nil {
		return nil, fmt.Errorf("temporal engine: query %s: %w", id, err)
	}
	var exec workflow.Execution
	if err := val.Get(&exec); err != nil {
		return nil, fmt.Errorf("temporal engine: decode query result for %s: %w", id, err)
	}
	e.mu.Lock()
	e.cache[id] = &exec
	e.mu.Unlock()
	return &exec, nil
}

func (e *Engine) GetExecutionStatus(ctx context.Context, id workflow.ExecutionID) (*workflow.Execution, error) {
	return e.queryExecution(ctx, id)
}

func (e *Engine) GetWorkflowTasks(ctx context.Context, id workflow.ExecutionID) (map[string]*workflow.TaskRecord, error) {
	exec, err := e.queryExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	return exec.Tasks, nil
}

func (e *Engine) GetWorkflowResult(ctx context.Context, id workflow.ExecutionID) (*workflow.Result, error) {
	exec, err := e.queryExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exec.Status.Terminal() {
		var result workflow.Result
		run := e.client.GetWorkflow(ctx, string(id), "")
		if err := run.Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("temporal engine: await result for %s: %w", id, err)
		}
		return &result, nil
	}
	return &workflow.Result{
		ExecutionID: id, Status: exec.Status,
		CompletedTasks: exec.CompletedTasks, FailedTasks: exec.FailedTasks, Artifacts: exec.Artifacts,
	}, nil
}

func (e *Engine) IsComplete(ctx context.Context, id workflow.ExecutionID) (bool, error) {
	exec, err := e.queryExecution(ctx, id)
	if err != nil {
		return false, err
	}
	return exec.Status.Terminal(), nil
}

// ListExecutions and GetExecutionStatistics report from this engine's
// local query cache, since building a durable execution's cross-process
// listing requires Temporal's Visibility API (out of scope here); callers
// needing a cluster-wide listing should query Temporal's visibility store
// directly rather than through this Engine.
func (e *Engine) ListExecutions(_ context.Context, limit int) ([]*workflow.Execution, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*workflow.Execution, 0, len(e.cache))
	for _, exec := range e.cache {
		out = append(out, exec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *Engine) GetExecutionStatistics(_ context.Context) (workflow.Statistics, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var stats workflow.Statistics
	for _, exec := range e.cache {
		stats.Total++
		switch exec.Status {
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

func (e *Engine) CancelExecution(ctx context.Context, id workflow.ExecutionID) error {
	if err := e.client.CancelWorkflow(ctx, string(id), ""); err != nil {
		return fmt.Errorf("temporal engine: cancel %s: %w", id, err)
	}
	return nil
}

// WorkerController manages the lifecycle of this engine's single worker.
type WorkerController struct {
	engine *Engine
}

func (c *WorkerController) Start() error {
	var startErr error
	c.engine.startOnce.Do(func() {
		go func() {
			if err := c.engine.worker.Run(worker.InterruptCh()); err != nil {
				c.engine.logger.Error(context.Background(), "temporal worker exited", "queue", c.engine.taskQueue, "err", err)
			}
		}()
	})
	return startErr
}

func (c *WorkerController) Stop() { c.engine.worker.Stop() }

var _ workflow.Engine = (*Engine)(nil)
