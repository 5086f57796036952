package inmem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/specialist"
	"github.com/agentfleet/orchestrator/workflow"
	"github.com/agentfleet/orchestrator/workflow/engine/inmem"
	"github.com/agentfleet/orchestrator/workflow/retry"
)

var errStubFailed = errors.New("stub agent failed")

type stubAgent struct {
	role specialist.Role
	fail bool
}

func (a stubAgent) Role() specialist.Role                 { return a.role }
func (a stubAgent) Name() string                          { return string(a.role) + "-stub" }
func (a stubAgent) CanHandle(specialist.ExecContext) bool { return true }
func (a stubAgent) Execute(_ context.Context, ec specialist.ExecContext) (specialist.TaskResult, error) {
	if a.fail {
		return specialist.TaskResult{}, errStubFailed
	}
	return specialist.TaskResult{Success: true, Artifacts: []string{ec.TaskName + ".out"}}, nil
}
func (a stubAgent) EstimateDuration(specialist.ExecContext) time.Duration { return time.Millisecond }
func (a stubAgent) ValidateResult(r specialist.TaskResult) bool          { return r.Success }

func TestExecuteWorkflow_UnknownTemplate(t *testing.T) {
	pool := specialist.New(nil, 1)
	catalog := workflow.NewCatalog(workflow.DefaultTemplates())
	eng := inmem.New(pool, catalog, nil)

	_, err := eng.ExecuteWorkflow(context.Background(), "nonexistent", workflow.Config{})
	require.ErrorIs(t, err, workflow.ErrUnknownTemplate)

	status, err := eng.GetExecutionStatus(context.Background(), workflow.ExecutionID("random-uuid"))
	require.Error(t, err)
	require.Nil(t, status)
}

func TestExecuteWorkflow_MicroserviceHappyPath(t *testing.T) {
	agents := []specialist.Agent{
		stubAgent{role: specialist.RoleCode},
		stubAgent{role: specialist.RoleTest},
		stubAgent{role: specialist.RoleDeploy},
	}
	pool := specialist.New(agents, 3)
	catalog := workflow.NewCatalog(workflow.DefaultTemplates())
	eng := inmem.New(pool, catalog, nil)

	id, err := eng.ExecuteWorkflow(context.Background(), "microservice", workflow.Config{
		EnableParallelExecution: true, MaxConcurrentTasks: 3,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		done, _ := eng.IsComplete(context.Background(), id)
		return done
	}, 2*time.Second, 10*time.Millisecond)

	exec, err := eng.GetExecutionStatus(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionCompleted, exec.Status)
	require.ElementsMatch(t, []string{"implement_service", "write_tests", "deploy"}, exec.CompletedTasks)

	result, err := eng.GetWorkflowResult(context.Background(), id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"implement_service.out", "write_tests.out", "deploy.out"}, result.Artifacts)
}

func TestExecuteWorkflow_FailureCancelsDependents(t *testing.T) {
	agents := []specialist.Agent{
		stubAgent{role: specialist.RoleCode, fail: true},
		stubAgent{role: specialist.RoleTest},
		stubAgent{role: specialist.RoleDeploy},
	}
	pool := specialist.New(agents, 3)
	catalog := workflow.NewCatalog(workflow.DefaultTemplates())
	eng := inmem.New(pool, catalog, nil)

	id, err := eng.ExecuteWorkflow(context.Background(), "microservice", workflow.Config{
		EnableParallelExecution: true, MaxConcurrentTasks: 3,
		RetryPolicy: retry.Config{MaxAttempts: 1},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		done, _ := eng.IsComplete(context.Background(), id)
		return done
	}, 2*time.Second, 10*time.Millisecond)

	exec, err := eng.GetExecutionStatus(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, workflow.ExecutionFailed, exec.Status)
	require.Contains(t, exec.FailedTasks, "implement_service")
	require.Equal(t, workflow.TaskCancelled, exec.Tasks["write_tests"].Status)
	require.Equal(t, workflow.TaskCancelled, exec.Tasks["deploy"].Status)
}
