package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/orchestrator/specialist"
	"github.com/agentfleet/orchestrator/workflow/retry"
)

// ExecutionID identifies one WorkflowExecution (spec.md §3: UUID).
type ExecutionID string

// NewExecutionID mints a fresh ExecutionID.
func NewExecutionID() ExecutionID { return ExecutionID(uuid.NewString()) }

// ExecutionStatus is the WorkflowExecution lifecycle (spec.md §3).
type ExecutionStatus string

const (
	ExecutionPreparing ExecutionStatus = "preparing"
	ExecutionRunning    ExecutionStatus = "running"
	ExecutionPaused     ExecutionStatus = "paused"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionFailed     ExecutionStatus = "failed"
	ExecutionCancelled  ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// TaskStatus is one WorkflowTask's per-run lifecycle (spec.md §3).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskBlocked    TaskStatus = "blocked"
	TaskInProgress TaskStatus = "in_progress"
	TaskRetrying   TaskStatus = "retrying"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
	TaskCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskCancelled:
		return true
	default:
		return false
	}
}

// OnFailurePolicy is set per task and governs what happens to that task
// when one of its dependencies ends Failed or Cancelled (spec.md §4.9
// step 5).
type OnFailurePolicy string

const (
	// OnFailureCancel marks the task Cancelled (the default); since a
	// Cancelled dependency triggers the same rule, the cancellation
	// cascades through every transitive dependent that keeps the default.
	OnFailureCancel OnFailurePolicy = "cancel"
	// OnFailureContinue runs the task anyway, despite the failed or
	// cancelled dependency.
	OnFailureContinue OnFailurePolicy = "continue"
)

// TaskRecord is one task's live record within an execution.
type TaskRecord struct {
	Name               string
	Status             TaskStatus
	ProgressPercentage int
	Attempt            int
	StartTime          time.Time
	EndTime            time.Time
	Result             *specialist.TaskResult
	Error              string
	OnFailure          OnFailurePolicy
}

// TaskOverride lets config.task_overrides adjust one task at dispatch time
// (spec.md §4.9 step 1).
type TaskOverride struct {
	Skip           bool
	TimeoutOverride time.Duration
	Params         map[string]string
	OnFailure      OnFailurePolicy
}

// Config configures one execute_workflow call (spec.md §4.9).
type Config struct {
	WorkingDir            string
	Language              string
	Framework             string
	Environment            string
	TaskOverrides          map[string]TaskOverride
	MaxConcurrentTasks     int
	EnableParallelExecution bool
	RetryPolicy            retry.Config
}

// Result aggregates a completed (or failed/cancelled) execution's output
// (spec.md §4.9 "aggregate artifacts").
type Result struct {
	ExecutionID   ExecutionID
	Status        ExecutionStatus
	CompletedTasks []string
	FailedTasks    []string
	Artifacts      []string
}

// Execution is the live WorkflowExecution record (spec.md §3).
type Execution struct {
	ID            ExecutionID
	TemplateKey   string
	Status        ExecutionStatus
	StartTime     time.Time
	EndTime       time.Time
	CompletedTasks []string
	FailedTasks    []string
	Artifacts      []string
	Tasks          map[string]*TaskRecord
}

// Statistics summarizes an Engine's execution history (spec.md §4.9
// get_execution_statistics).
type Statistics struct {
	Total     int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// Engine is the Workflow Engine's operation surface (spec.md §4.9). It has
// two interchangeable implementations: workflow/engine/inmem (the
// default, goroutine-per-ready-task scheduler) and workflow/engine/temporal
// (each WorkflowTask as a Temporal activity, the DAG as the workflow
// function) — both implement this same interface, per spec.md §9 "dynamic
// dispatch... do not model as inheritance hierarchies".
type Engine interface {
	ExecuteWorkflow(ctx context.Context, templateKey string, cfg Config) (ExecutionID, error)
	GetExecutionStatus(ctx context.Context, id ExecutionID) (*Execution, error)
	GetWorkflowTasks(ctx context.Context, id ExecutionID) (map[string]*TaskRecord, error)
	GetWorkflowResult(ctx context.Context, id ExecutionID) (*Result, error)
	IsComplete(ctx context.Context, id ExecutionID) (bool, error)
	ListExecutions(ctx context.Context, limit int) ([]*Execution, error)
	GetExecutionStatistics(ctx context.Context) (Statistics, error)
	CancelExecution(ctx context.Context, id ExecutionID) error
}
