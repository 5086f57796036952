package hooks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/hooks"
	"github.com/agentfleet/orchestrator/telemetry"
)

func TestFire_NoHandlersContinues(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	res := m.Fire(context.Background(), hooks.Event{Point: hooks.PreToolUse})
	require.False(t, res.Blocked)
	require.Empty(t, res.Results)
}

func TestFire_SyncBlockDecisionBlocks(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	_, err := m.Register(hooks.PreToolUse, hooks.Sync, nil, hooks.HandlerFunc(
		func(context.Context, hooks.Event) (hooks.HookResult, error) {
			return hooks.HookResult{Decision: hooks.Block, Reason: "dangerous tool"}, nil
		}))
	require.NoError(t, err)

	res := m.Fire(context.Background(), hooks.Event{Point: hooks.PreToolUse})
	require.True(t, res.Blocked)
	require.Contains(t, res.Reasons, "dangerous tool")
}

func TestFire_SyncExitCode2Blocks(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	_, err := m.Register(hooks.PreToolUse, hooks.Sync, nil, hooks.HandlerFunc(
		func(context.Context, hooks.Event) (hooks.HookResult, error) {
			return hooks.HookResult{ExitCode: 2, Decision: hooks.Continue}, nil
		}))
	require.NoError(t, err)

	res := m.Fire(context.Background(), hooks.Event{Point: hooks.PreToolUse})
	require.True(t, res.Blocked)
}

func TestFire_MatcherNarrowsDelivery(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	var fired bool
	_, err := m.Register(hooks.PreToolUse, hooks.Sync, func(e hooks.Event) bool {
		return e.ToolName == "shell"
	}, hooks.HandlerFunc(func(context.Context, hooks.Event) (hooks.HookResult, error) {
		fired = true
		return hooks.HookResult{Decision: hooks.Continue}, nil
	}))
	require.NoError(t, err)

	m.Fire(context.Background(), hooks.Event{Point: hooks.PreToolUse, ToolName: "docs"})
	require.False(t, fired)

	m.Fire(context.Background(), hooks.Event{Point: hooks.PreToolUse, ToolName: "shell"})
	require.True(t, fired)
}

func TestFire_AsyncHandlerDoesNotBlockReturn(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	started := make(chan struct{})
	release := make(chan struct{})
	_, err := m.Register(hooks.Notification, hooks.Async, nil, hooks.HandlerFunc(
		func(context.Context, hooks.Event) (hooks.HookResult, error) {
			close(started)
			<-release
			return hooks.HookResult{Decision: hooks.Continue}, nil
		}))
	require.NoError(t, err)

	res := m.Fire(context.Background(), hooks.Event{Point: hooks.Notification})
	require.False(t, res.Blocked)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("async handler never started")
	}
	close(release)
	m.Wait()
}

func TestFire_HandlerErrorDoesNotBlock(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	_, err := m.Register(hooks.Stop, hooks.Sync, nil, hooks.HandlerFunc(
		func(context.Context, hooks.Event) (hooks.HookResult, error) {
			return hooks.HookResult{}, errors.New("handler blew up")
		}))
	require.NoError(t, err)

	res := m.Fire(context.Background(), hooks.Event{Point: hooks.Stop})
	require.False(t, res.Blocked)
	require.Contains(t, res.Reasons, "handler blew up")
}

func TestSubscriptionClose_StopsDelivery(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	var calls int
	sub, err := m.Register(hooks.SessionEnd, hooks.Sync, nil, hooks.HandlerFunc(
		func(context.Context, hooks.Event) (hooks.HookResult, error) {
			calls++
			return hooks.HookResult{Decision: hooks.Continue}, nil
		}))
	require.NoError(t, err)

	m.Fire(context.Background(), hooks.Event{Point: hooks.SessionEnd})
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	m.Fire(context.Background(), hooks.Event{Point: hooks.SessionEnd})

	require.Equal(t, 1, calls)
}

func TestRegister_NilHandlerRejected(t *testing.T) {
	m := hooks.New(telemetry.NoopLogger{})
	_, err := m.Register(hooks.Setup, hooks.Sync, nil, nil)
	require.ErrorIs(t, err, hooks.ErrNilHandler)
}
