// Package stategraph implements the State Graph (C10): the per-task
// CODE -> TEST -> FIX -> DONE loop that drives a single specialist's
// iterative self-correction, gated by the Done Gate (C11). Grounded on the
// teacher's runtime/agent/runtime/workflow_loop.go shape — an explicit
// `for { ... }` loop over a small mutable state struct, with every
// suspension/transition point named rather than hidden behind recursion —
// adapted from a durable Temporal workflow loop to a plain synchronous
// state machine with an optional observer channel in place of workflow
// signals.
package stategraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentfleet/orchestrator/donegate"
)

// State is one node of the CODE/TEST/FIX/DONE graph (spec.md §4.10).
type State string

const (
	StateIdle   State = "idle"
	StateCode   State = "code"
	StateTest   State = "test"
	StateFix    State = "fix"
	StateDone   State = "done"
	StateFailed State = "failed"
)

// Terminal reports whether s ends the run.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// TestStatus is the outcome of a single test.
type TestStatus string

const (
	TestPassed TestStatus = "passed"
	TestFailed TestStatus = "failed"
)

// TestResult is one test's outcome, as produced by a TestFunc.
type TestResult struct {
	Name    string
	Status  TestStatus
	Message string
}

func allPassed(results []TestResult) bool {
	for _, r := range results {
		if r.Status != TestPassed {
			return false
		}
	}
	return true
}

// CodeTestFixState is the mutable state threaded through the graph's run,
// per spec.md §3 CodeTestFixState.
type CodeTestFixState struct {
	TaskName      string
	GeneratedFiles []string
	FixedFiles     []string
	TestResults    []TestResult
	LastError      error
	FixAttempts    int
	Iteration      int
}

// CodeFunc generates (or regenerates, on a Code restart) the task's
// implementation files.
type CodeFunc func(ctx context.Context, st *CodeTestFixState) ([]string, error)

// TestFunc runs the test suite against the current generated/fixed files.
type TestFunc func(ctx context.Context, st *CodeTestFixState) ([]TestResult, error)

// FixFunc attempts one fix pass in response to failing tests.
type FixFunc func(ctx context.Context, st *CodeTestFixState) ([]string, error)

// Verifier is the narrow slice of donegate.Gate the graph depends on, kept
// as an interface so tests can substitute a stub without shelling out.
type Verifier interface {
	Verify(ctx context.Context, workingDir string) donegate.Result
}

// EventKind discriminates the observer events emitted during Run.
type EventKind string

const (
	EventStateTransition EventKind = "state_transition"
	EventCodeGenerated   EventKind = "code_generated"
	EventTestsRun        EventKind = "tests_run"
	EventFixAttempted    EventKind = "fix_attempted"
	EventDoneGateCheck   EventKind = "done_gate_check"
	EventCompleted       EventKind = "completed"
)

// Event is one observable step of the graph's run, per spec.md §4.10.
type Event struct {
	Kind      EventKind
	From      State
	To        State
	Iteration int
	Message   string
}

func emit(observer chan<- Event, ev Event) {
	if observer == nil {
		return
	}
	observer <- ev
}

// ErrMaxIterationsExceeded is the reason recorded when the graph's global
// iteration cap forces a Failed terminal state.
var ErrMaxIterationsExceeded = errors.New("stategraph: max_iterations exceeded")

// Config configures one Graph run.
type Config struct {
	CodeFn         CodeFunc
	TestFn         TestFunc
	FixFn          FixFunc
	Verifier       Verifier // nil skips the Done Gate: passing tests alone reach Done
	WorkingDir     string
	MaxIterations  int
	MaxFixAttempts int
}

// Graph drives one task through the CODE/TEST/FIX/DONE loop.
type Graph struct {
	cfg Config
}

// New constructs a Graph. CodeFn, TestFn, and FixFn are required.
func New(cfg Config) (*Graph, error) {
	if cfg.CodeFn == nil || cfg.TestFn == nil || cfg.FixFn == nil {
		return nil, errors.New("stategraph: CodeFn, TestFn, and FixFn are required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxFixAttempts <= 0 {
		cfg.MaxFixAttempts = 3
	}
	return &Graph{cfg: cfg}, nil
}

// loop holds the run's mutable position, mirroring the teacher's
// workflowLoop: the graph itself is stateless and reusable; loop is the
// one-shot cursor over a single Run call.
type loop struct {
	g        *Graph
	observer chan<- Event
	state    State
	st       CodeTestFixState
}

// Run drives the graph to a terminal state, per spec.md §4.10. observer
// may be nil; when non-nil, Run sends one Event per transition/milestone
// and the caller is responsible for draining it concurrently (Run blocks
// on a full, unbuffered observer channel exactly like any other send).
func (g *Graph) Run(ctx context.Context, taskName string, observer chan<- Event) (State, CodeTestFixState, error) {
	l := &loop{g: g, observer: observer, state: StateIdle, st: CodeTestFixState{TaskName: taskName}}
	return l.run(ctx)
}

func (l *loop) transition(to State, msg string) {
	emit(l.observer, Event{Kind: EventStateTransition, From: l.state, To: to, Iteration: l.st.Iteration, Message: msg})
	l.state = to
}

// enterCode increments the global iteration counter and transitions into
// Code, unless the cap is already exceeded — in which case it forces
// Failed instead. This resolves spec.md §9's open question in favor of
// the iteration cap: it always wins over a Fix-attempt restart into Code.
func (l *loop) enterCode(reason string) {
	l.st.Iteration++
	if l.st.Iteration > l.g.cfg.MaxIterations {
		l.st.LastError = ErrMaxIterationsExceeded
		l.transition(StateFailed, ErrMaxIterationsExceeded.Error())
		return
	}
	l.transition(StateCode, reason)
}

func (l *loop) run(ctx context.Context) (State, CodeTestFixState, error) {
	l.enterCode("initial code generation")

	for !l.state.Terminal() {
		if err := ctx.Err(); err != nil {
			l.st.LastError = err
			l.transition(StateFailed, err.Error())
			break
		}

		switch l.state {
		case StateCode:
			l.runCode(ctx)
		case StateTest:
			l.runTest(ctx)
		case StateFix:
			l.runFix(ctx)
		default:
			// Idle only ever appears before the first enterCode call, and
			// Done/Failed are terminal; an unreachable state value here
			// means a bug in this loop, not caller input.
			return l.state, l.st, fmt.Errorf("stategraph: unreachable state %q", l.state)
		}
	}

	emit(l.observer, Event{Kind: EventCompleted, To: l.state, Iteration: l.st.Iteration})
	if l.state == StateFailed {
		return l.state, l.st, l.st.LastError
	}
	return l.state, l.st, nil
}

func (l *loop) runCode(ctx context.Context) {
	files, err := l.g.cfg.CodeFn(ctx, &l.st)
	if err != nil {
		l.st.LastError = err
		l.transition(StateFailed, fmt.Sprintf("code generation failed: %v", err))
		return
	}
	l.st.GeneratedFiles = files
	emit(l.observer, Event{Kind: EventCodeGenerated, Iteration: l.st.Iteration, Message: fmt.Sprintf("%d files", len(files))})
	l.transition(StateTest, "code generation succeeded")
}

func (l *loop) runTest(ctx context.Context) {
	results, err := l.g.cfg.TestFn(ctx, &l.st)
	if err != nil {
		l.st.LastError = err
		l.transition(StateFailed, fmt.Sprintf("test execution failed: %v", err))
		return
	}
	l.st.TestResults = results
	emit(l.observer, Event{Kind: EventTestsRun, Iteration: l.st.Iteration, Message: fmt.Sprintf("%d results", len(results))})

	if !allPassed(results) {
		l.transition(StateFix, "one or more tests failed")
		return
	}

	if l.g.cfg.Verifier == nil {
		l.transition(StateDone, "all tests passed; no done gate configured")
		return
	}

	result := l.g.cfg.Verifier.Verify(ctx, l.g.cfg.WorkingDir)
	emit(l.observer, Event{Kind: EventDoneGateCheck, Iteration: l.st.Iteration, Message: string(result.Verdict)})
	switch result.Verdict {
	case donegate.VerdictDone:
		l.transition(StateDone, "done gate passed")
	case donegate.VerdictReEnterFix:
		l.transition(StateFix, fmt.Sprintf("done gate requested fix: %s", result.Message))
	default: // donegate.VerdictFailed
		l.st.LastError = fmt.Errorf("stategraph: done gate failed: %s", result.Message)
		l.transition(StateFailed, result.Message)
	}
}

func (l *loop) runFix(ctx context.Context) {
	l.st.FixAttempts++
	if l.st.FixAttempts > l.g.cfg.MaxFixAttempts {
		emit(l.observer, Event{
			Kind: EventFixAttempted, Iteration: l.st.Iteration,
			Message: fmt.Sprintf("fix_attempts %d exceeded max_fix_attempts %d; restarting from Code", l.st.FixAttempts, l.g.cfg.MaxFixAttempts),
		})
		l.st.FixAttempts = 0
		l.enterCode("fix attempts exhausted")
		return
	}

	files, err := l.g.cfg.FixFn(ctx, &l.st)
	if err != nil {
		l.st.LastError = err
		l.transition(StateFailed, fmt.Sprintf("fix attempt failed: %v", err))
		return
	}
	l.st.FixedFiles = files
	emit(l.observer, Event{Kind: EventFixAttempted, Iteration: l.st.Iteration, Message: fmt.Sprintf("attempt %d applied", l.st.FixAttempts)})
	l.transition(StateTest, "fix applied")
}
