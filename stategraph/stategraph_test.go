package stategraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/donegate"
	"github.com/agentfleet/orchestrator/stategraph"
)

// TestRun_HappyPath matches spec.md §8 scenario 5: max_iterations=5, one
// successful code generation, one passing test run, no done gate -> Done
// after exactly one iteration.
func TestRun_HappyPath(t *testing.T) {
	g, err := stategraph.New(stategraph.Config{
		CodeFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			return []string{"main"}, nil
		},
		TestFn: func(context.Context, *stategraph.CodeTestFixState) ([]stategraph.TestResult, error) {
			return []stategraph.TestResult{{Name: "t1", Status: stategraph.TestPassed}}, nil
		},
		FixFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			t.Fatal("FixFn should not be called on the happy path")
			return nil, nil
		},
		MaxIterations: 5,
	})
	require.NoError(t, err)

	state, st, err := g.Run(context.Background(), "demo", nil)
	require.NoError(t, err)
	require.Equal(t, stategraph.StateDone, state)
	require.Equal(t, 1, st.Iteration)
	require.Equal(t, []string{"main"}, st.GeneratedFiles)
}

// TestRun_FixCycle matches spec.md §8 scenario 6: the first two test runs
// fail, the third passes; max_fix_attempts=2; the fix function always
// succeeds -> Done after exactly two Fix transitions, without ever
// restarting through Code.
func TestRun_FixCycle(t *testing.T) {
	testCall := 0
	fixCalls := 0

	g, err := stategraph.New(stategraph.Config{
		CodeFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			return []string{"main"}, nil
		},
		TestFn: func(context.Context, *stategraph.CodeTestFixState) ([]stategraph.TestResult, error) {
			testCall++
			if testCall <= 2 {
				return []stategraph.TestResult{{Name: "t1", Status: stategraph.TestFailed, Message: "boom"}}, nil
			}
			return []stategraph.TestResult{{Name: "t1", Status: stategraph.TestPassed}}, nil
		},
		FixFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			fixCalls++
			return []string{"main"}, nil
		},
		MaxFixAttempts: 2,
		MaxIterations:  5,
	})
	require.NoError(t, err)

	var events []stategraph.Event
	observer := make(chan stategraph.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range observer {
			events = append(events, ev)
		}
	}()

	state, st, err := g.Run(context.Background(), "demo", observer)
	close(observer)
	<-done

	require.NoError(t, err)
	require.Equal(t, stategraph.StateDone, state)
	require.Equal(t, 1, st.Iteration, "no Code restart should have been needed")
	require.Equal(t, 2, fixCalls)

	fixAttempted := 0
	for _, ev := range events {
		if ev.Kind == stategraph.EventFixAttempted {
			fixAttempted++
		}
	}
	require.Equal(t, 2, fixAttempted)
}

// TestRun_MaxIterationsWins matches the §9 open-question resolution: when
// fix attempts overflow and the global iteration cap is already exhausted,
// the graph terminates Failed rather than restarting through Code.
func TestRun_MaxIterationsWins(t *testing.T) {
	g, err := stategraph.New(stategraph.Config{
		CodeFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			return []string{"main"}, nil
		},
		TestFn: func(context.Context, *stategraph.CodeTestFixState) ([]stategraph.TestResult, error) {
			return []stategraph.TestResult{{Name: "t1", Status: stategraph.TestFailed}}, nil
		},
		FixFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			return []string{"main"}, nil
		},
		MaxFixAttempts: 1,
		MaxIterations:  1,
	})
	require.NoError(t, err)

	state, _, err := g.Run(context.Background(), "demo", nil)
	require.Error(t, err)
	require.Equal(t, stategraph.StateFailed, state)
	require.ErrorIs(t, err, stategraph.ErrMaxIterationsExceeded)
}

// TestRun_DoneGateReEntersFix matches spec.md §4.10/§4.11: a DoneGate that
// reports NeedsWork (ReEnterFix) sends the graph back to Fix even though
// every test passed.
func TestRun_DoneGateReEntersFix(t *testing.T) {
	verifyCalls := 0
	g, err := stategraph.New(stategraph.Config{
		CodeFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			return []string{"main"}, nil
		},
		TestFn: func(context.Context, *stategraph.CodeTestFixState) ([]stategraph.TestResult, error) {
			return []stategraph.TestResult{{Name: "t1", Status: stategraph.TestPassed}}, nil
		},
		FixFn: func(context.Context, *stategraph.CodeTestFixState) ([]string, error) {
			return []string{"main"}, nil
		},
		Verifier:       verifierFunc(func(context.Context, string) donegate.Result {
			verifyCalls++
			if verifyCalls == 1 {
				return donegate.Result{Verdict: donegate.VerdictReEnterFix, CheckName: "lint", Message: "needs work"}
			}
			return donegate.Result{Verdict: donegate.VerdictDone}
		}),
		MaxFixAttempts: 2,
		MaxIterations:  5,
	})
	require.NoError(t, err)

	state, _, err := g.Run(context.Background(), "demo", nil)
	require.NoError(t, err)
	require.Equal(t, stategraph.StateDone, state)
	require.Equal(t, 2, verifyCalls)
}

type verifierFunc func(ctx context.Context, workingDir string) donegate.Result

func (f verifierFunc) Verify(ctx context.Context, workingDir string) donegate.Result {
	return f(ctx, workingDir)
}
