package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/workflow"
	"github.com/agentfleet/orchestrator/workflow/dag"
	"github.com/agentfleet/orchestrator/workflow/retry"
)

func TestToTemporalRetryPolicy_DefaultsWhenUnset(t *testing.T) {
	rp := toTemporalRetryPolicy(retry.Config{})
	require.NotNil(t, rp)
	require.Equal(t, int32(3), rp.MaximumAttempts)
	require.Equal(t, 500*time.Millisecond, rp.InitialInterval)
}

func TestToTemporalRetryPolicy_PassesThroughExplicitConfig(t *testing.T) {
	rp := toTemporalRetryPolicy(retry.Config{
		MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Minute, BackoffMultiplier: 3,
	})
	require.Equal(t, int32(5), rp.MaximumAttempts)
	require.Equal(t, time.Second, rp.InitialInterval)
	require.Equal(t, time.Minute, rp.MaximumInterval)
	require.InDelta(t, 3.0, rp.BackoffCoefficient, 0.0001)
}

func TestFinalizeDAGExecution_AllCompleted(t *testing.T) {
	graph, err := dag.Build([]dag.Node{{Name: "a"}, {Name: "b", Dependencies: []string{"a"}}})
	require.NoError(t, err)

	aResult, bResult := specialistTR("a.out"), specialistTR("b.out")
	exec := &workflow.Execution{Tasks: map[string]*workflow.TaskRecord{
		"a": {Name: "a", Status: workflow.TaskCompleted, Result: &aResult.TaskResult},
		"b": {Name: "b", Status: workflow.TaskCompleted, Result: &bResult.TaskResult},
	}}

	finalizeDAGExecution(exec, graph, false)
	require.Equal(t, workflow.ExecutionCompleted, exec.Status)
	require.Equal(t, []string{"a", "b"}, exec.CompletedTasks)
	require.ElementsMatch(t, []string{"a.out", "b.out"}, exec.Artifacts)
}

func TestFinalizeDAGExecution_FailurePreemptsCompletion(t *testing.T) {
	graph, err := dag.Build([]dag.Node{{Name: "a"}, {Name: "b", Dependencies: []string{"a"}}})
	require.NoError(t, err)

	exec := &workflow.Execution{Tasks: map[string]*workflow.TaskRecord{
		"a": {Name: "a", Status: workflow.TaskFailed},
		"b": {Name: "b", Status: workflow.TaskCancelled},
	}}

	finalizeDAGExecution(exec, graph, false)
	require.Equal(t, workflow.ExecutionFailed, exec.Status)
	require.Equal(t, []string{"a"}, exec.FailedTasks)
	require.Empty(t, exec.CompletedTasks)
}

func TestFinalizeDAGExecution_CancelWins(t *testing.T) {
	graph, err := dag.Build([]dag.Node{{Name: "a"}})
	require.NoError(t, err)
	exec := &workflow.Execution{Tasks: map[string]*workflow.TaskRecord{
		"a": {Name: "a", Status: workflow.TaskCancelled},
	}}
	finalizeDAGExecution(exec, graph, true)
	require.Equal(t, workflow.ExecutionCancelled, exec.Status)
}

func specialistTR(artifact string) specialistTaskResult {
	r := specialistTaskResult{}
	r.Artifacts = []string{artifact}
	return r
}
