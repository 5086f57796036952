package temporal

import (
	"fmt"
	"sort"
	"time"

	"go.temporal.io/sdk/log"
	temporalsdk "go.temporal.io/sdk/temporal"
	tworkflow "go.temporal.io/sdk/workflow"

	"github.com/agentfleet/orchestrator/workflow"
	"github.com/agentfleet/orchestrator/workflow/dag"
	"github.com/agentfleet/orchestrator/workflow/retry"
)

// WorkflowName is the Temporal workflow type registered for every DAG
// execution; one workflow type serves every template.
const WorkflowName = "AgentFleetDAGWorkflow"

// ActivityName is the Temporal activity type dispatching one WorkflowTask
// to the specialist pool.
const ActivityName = "RunSpecialistTask"

// dagWorkflowInput is the serializable payload Temporal persists in its
// event history for one DAG workflow execution.
type dagWorkflowInput struct {
	TemplateKey string
	Tasks       []workflow.Task
	Config      workflow.Config
}

// dagTaskInput is the per-activity payload for ActivityName.
type dagTaskInput struct {
	Task       workflow.Task
	ExecID     string
	WorkingDir string
	Params     map[string]string
}

// dagWorkflow is the Temporal workflow function implementing the DAG
// scheduler: it builds the dependency graph deterministically (dag.Build
// does no I/O, so it is safe to call from workflow code) and fans one
// coroutine out per task, each first waiting on its dependencies' done
// channels before scheduling its activity. Execution state is exposed via
// a query handler rather than returned only at completion, mirroring the
// teacher's run-status query convention.
func dagWorkflow(ctx tworkflow.Context, in dagWorkflowInput) (workflow.Result, error) {
	logger := tworkflow.GetLogger(ctx)

	nodes := make([]dag.Node, len(in.Tasks))
	byName := make(map[string]workflow.Task, len(in.Tasks))
	for i, t := range in.Tasks {
		nodes[i] = dag.Node{Name: t.Name, Dependencies: t.Dependencies}
		byName[t.Name] = t
	}
	graph, err := dag.Build(nodes)
	if err != nil {
		return workflow.Result{}, fmt.Errorf("temporal engine: invalid template %q: %w", in.TemplateKey, err)
	}

	info := tworkflow.GetInfo(ctx)
	exec := &workflow.Execution{
		ID: workflow.ExecutionID(info.WorkflowExecution.ID), TemplateKey: in.TemplateKey,
		Status: workflow.ExecutionRunning, StartTime: tworkflow.Now(ctx),
		Tasks: make(map[string]*workflow.TaskRecord, len(in.Tasks)),
	}
	for _, t := range in.Tasks {
		onFailure := workflow.OnFailureCancel
		if ov, ok := in.Config.TaskOverrides[t.Name]; ok && ov.OnFailure != "" {
			onFailure = ov.OnFailure
		}
		exec.Tasks[t.Name] = &workflow.TaskRecord{Name: t.Name, Status: workflow.TaskPending, OnFailure: onFailure}
	}

	if err := tworkflow.SetQueryHandler(ctx, "execution", func() (*workflow.Execution, error) {
		return exec, nil
	}); err != nil {
		return workflow.Result{}, fmt.Errorf("temporal engine: set query handler: %w", err)
	}

	var cancelRequested bool
	tworkflow.Go(ctx, func(ctx tworkflow.Context) {
		ctx.Done().Receive(ctx, nil)
		cancelRequested = true
	})

	done := make(map[string]tworkflow.Channel, len(in.Tasks))
	for _, name := range graph.Names() {
		done[name] = tworkflow.NewChannel(ctx)
	}

	ao := tworkflow.ActivityOptions{
		StartToCloseTimeout: taskTimeout(in.Config),
		RetryPolicy:         toTemporalRetryPolicy(in.Config.RetryPolicy),
	}
	actx := tworkflow.WithActivityOptions(ctx, ao)

	names := graph.Names()
	waitGroup := tworkflow.NewWaitGroup(ctx)
	for _, name := range names {
		t := byName[name]
		waitGroup.Add(1)
		tworkflow.Go(ctx, func(gctx tworkflow.Context) {
			defer waitGroup.Done()
			runDAGTask(gctx, actx, logger, exec, t, in, done, cancelRequested)
		})
	}
	waitGroup.Wait(ctx)

	finalizeDAGExecution(exec, graph, cancelRequested)
	return workflow.Result{
		ExecutionID: exec.ID, Status: exec.Status,
		CompletedTasks: exec.CompletedTasks, FailedTasks: exec.FailedTasks, Artifacts: exec.Artifacts,
	}, nil
}

func runDAGTask(ctx, actx tworkflow.Context, logger log.Logger, exec *workflow.Execution, t workflow.Task, in dagWorkflowInput, done map[string]tworkflow.Channel, cancelRequested bool) {
	rec := exec.Tasks[t.Name]
	defer done[t.Name].Close()

	for _, dep := range t.Dependencies {
		done[dep].Receive(ctx, nil)
	}
	if len(t.Dependencies) > 0 {
		rec.Status = workflow.TaskBlocked
	}

	var depsFailed bool
	for _, dep := range t.Dependencies {
		switch exec.Tasks[dep].Status {
		case workflow.TaskFailed, workflow.TaskCancelled:
			depsFailed = true
		}
	}
	if depsFailed && rec.OnFailure != workflow.OnFailureContinue {
		rec.Status = workflow.TaskCancelled
		return
	}

	if ov, ok := in.Config.TaskOverrides[t.Name]; ok && ov.Skip {
		rec.Status = workflow.TaskSkipped
		return
	}
	if cancelRequested {
		rec.Status = workflow.TaskCancelled
		return
	}

	rec.Status = workflow.TaskInProgress
	rec.StartTime = tworkflow.Now(ctx)

	var result specialistTaskResult
	err := tworkflow.ExecuteActivity(actx, ActivityName, dagTaskInput{
		Task: t, ExecID: string(exec.ID), WorkingDir: in.Config.WorkingDir,
		Params: taskParamsFor(t, in.Config),
	}).Get(ctx, &result)

	rec.EndTime = tworkflow.Now(ctx)
	if err != nil {
		rec.Error = err.Error()
		logger.Warn("specialist task failed", "task", t.Name, "error", err)
		rec.Status = workflow.TaskFailed
		return
	}
	rec.Result = &result.TaskResult
	rec.ProgressPercentage = 100
	rec.Status = workflow.TaskCompleted
}

func finalizeDAGExecution(exec *workflow.Execution, graph *dag.Graph, canceled bool) {
	var completed, failed, artifacts []string
	for _, name := range graph.Names() {
		rec := exec.Tasks[name]
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
	exec.CompletedTasks, exec.FailedTasks, exec.Artifacts = completed, failed, artifacts

	switch {
	case canceled:
		exec.Status = workflow.ExecutionCancelled
	case len(failed) > 0:
		exec.Status = workflow.ExecutionFailed
	default:
		exec.Status = workflow.ExecutionCompleted
	}
}

func taskParamsFor(t workflow.Task, cfg workflow.Config) map[string]string {
	if ov, ok := cfg.TaskOverrides[t.Name]; ok && len(ov.Params) > 0 {
		out := make(map[string]string, len(ov.Params))
		for k, v := range ov.Params {
			out[k] = v
		}
		return out
	}
	return nil
}

func taskTimeout(cfg workflow.Config) time.Duration {
	if cfg.RetryPolicy.MaxBackoff > 0 {
		return 10 * time.Minute
	}
	return 5 * time.Minute
}

// toTemporalRetryPolicy maps the engine-agnostic retry.Config onto
// Temporal's native activity RetryPolicy, so the temporal backend relies
// on Temporal's own retry/backoff machinery instead of workflow/retry
// (which exists for the inmem backend, where nothing else provides it).
func toTemporalRetryPolicy(cfg retry.Config) *temporalsdk.RetryPolicy {
	if cfg.MaxAttempts == 0 {
		cfg = retry.DefaultConfig()
	}
	return &temporalsdk.RetryPolicy{
		InitialInterval:    cfg.InitialBackoff,
		BackoffCoefficient: cfg.BackoffMultiplier,
		MaximumInterval:    cfg.MaxBackoff,
		MaximumAttempts:    int32(cfg.MaxAttempts),
	}
}
