package specialist_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/specialist"
)

type stubAgent struct {
	role     specialist.Role
	name     string
	canDo    bool
	result   specialist.TaskResult
	err      error
	validate bool
}

func (a *stubAgent) Role() specialist.Role                               { return a.role }
func (a *stubAgent) Name() string                                        { return a.name }
func (a *stubAgent) CanHandle(specialist.ExecContext) bool                { return a.canDo }
func (a *stubAgent) EstimateDuration(specialist.ExecContext) time.Duration { return time.Second }
func (a *stubAgent) ValidateResult(specialist.TaskResult) bool            { return a.validate }
func (a *stubAgent) Execute(context.Context, specialist.ExecContext) (specialist.TaskResult, error) {
	return a.result, a.err
}

func TestPool_ExecuteRoutesToCapableAgent(t *testing.T) {
	agent := &stubAgent{role: specialist.RoleCode, name: "coder", canDo: true, validate: true, result: specialist.TaskResult{Success: true}}
	pool := specialist.New([]specialist.Agent{agent}, 2)

	result, err := pool.Execute(context.Background(), "t1", specialist.RoleCode, specialist.ExecContext{})
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestPool_NoCapableAgent(t *testing.T) {
	agent := &stubAgent{role: specialist.RoleCode, name: "coder", canDo: false}
	pool := specialist.New([]specialist.Agent{agent}, 2)

	_, err := pool.Execute(context.Background(), "t1", specialist.RoleCode, specialist.ExecContext{})
	require.ErrorIs(t, err, specialist.ErrNoAgentForRole)
}

func TestPool_StatisticsTracksAvailability(t *testing.T) {
	agent := &stubAgent{role: specialist.RoleCode, name: "coder", canDo: true, validate: true}
	pool := specialist.New([]specialist.Agent{agent}, 1)

	stats := pool.Statistics()
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Available)
}

func TestPool_InvalidResultIsReportedAsError(t *testing.T) {
	agent := &stubAgent{role: specialist.RoleTest, name: "tester", canDo: true, validate: false, result: specialist.TaskResult{Success: true}}
	pool := specialist.New([]specialist.Agent{agent}, 1)

	_, err := pool.Execute(context.Background(), "t1", specialist.RoleTest, specialist.ExecContext{})
	require.Error(t, err)
}

func TestPool_CancelUnknownTaskReturnsFalse(t *testing.T) {
	pool := specialist.New(nil, 1)
	require.False(t, pool.Cancel("missing"))
}
