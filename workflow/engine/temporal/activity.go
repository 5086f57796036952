package temporal

import (
	"context"

	"github.com/agentfleet/orchestrator/specialist"
)

// specialistTaskResult wraps specialist.TaskResult so Temporal's default
// JSON data converter has a named type to (de)serialize through activity
// boundaries.
type specialistTaskResult struct {
	specialist.TaskResult
}

// taskActivities closes over the process-local specialist.Pool; agents
// themselves are not durable, so only the process that registered them
// can execute their activities (worker mode, per the teacher's
// Worker-vs-Client-mode distinction in doc.go).
type taskActivities struct {
	pool *specialist.Pool
}

// RunSpecialistTask is the Temporal activity registered under ActivityName.
// It is not constrained by workflow determinism, so it dispatches directly
// through the specialist pool exactly like the inmem backend's runTask.
func (a *taskActivities) RunSpecialistTask(ctx context.Context, in dagTaskInput) (specialistTaskResult, error) {
	ec := specialist.ExecContext{
		TaskName: in.Task.Name, WorkingDir: in.WorkingDir,
		Description: in.Task.Description, Params: in.Params,
	}
	result, err := a.pool.Execute(ctx, in.ExecID+"/"+in.Task.Name, in.Task.Role, ec)
	if err != nil {
		return specialistTaskResult{}, err
	}
	return specialistTaskResult{TaskResult: result}, nil
}
