// Package hooks implements the Hook Manager (C12): named event points in
// the execution pipeline where external handlers can observe or block
// progress (spec.md §4.12). Grounded directly on, and substantially
// reusing the shape of, the teacher's runtime/agent/hooks package (Bus,
// Subscriber, Subscription, fail-fast synchronous Publish), generalized
// from the teacher's fixed event set to the spec's named hook points and
// extended with a parallel async fire-and-forget dispatch path alongside
// the synchronous one.
package hooks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentfleet/orchestrator/telemetry"
)

// Point is one of the fixed named hook points (spec.md §4.12).
type Point string

const (
	Setup              Point = "Setup"
	SessionStart       Point = "SessionStart"
	UserPromptSubmit   Point = "UserPromptSubmit"
	PreToolUse         Point = "PreToolUse"
	PermissionRequest  Point = "PermissionRequest"
	PostToolUse        Point = "PostToolUse"
	PostToolUseFailure Point = "PostToolUseFailure"
	Notification       Point = "Notification"
	SubagentStart      Point = "SubagentStart"
	SubagentStop       Point = "SubagentStop"
	Stop               Point = "Stop"
	PreCompact         Point = "PreCompact"
	SessionEnd         Point = "SessionEnd"
)

// Decision is a handler's verdict on whether the event may proceed
// (spec.md §4.12).
type Decision string

const (
	Continue Decision = "Continue"
	Block    Decision = "Block"
	Approve  Decision = "Approve"
)

// Mode selects whether a handler is awaited before the event is
// considered fired (sync) or dispatched fire-and-forget (async).
type Mode string

const (
	Sync  Mode = "sync"
	Async Mode = "async"
)

// Event is the payload delivered to handlers for one hook point firing.
type Event struct {
	Point     Point
	RunID     string
	SessionID string
	ToolName  string
	Payload   any
	Timestamp time.Time
}

// HookResult is a single handler's outcome (spec.md §4.12).
type HookResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Decision Decision
	Reason   string
	Output   any
}

// Handler reacts to a fired Event and returns its verdict.
type Handler interface {
	HandleEvent(ctx context.Context, event Event) (HookResult, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) (HookResult, error)

func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) (HookResult, error) {
	return f(ctx, event)
}

// Matcher optionally narrows which events a registration receives; a nil
// Matcher matches every event at its Point.
type Matcher func(event Event) bool

// FireResult aggregates every handler's outcome for one Fire call.
type FireResult struct {
	Blocked bool
	Reasons []string
	Results []HookResult
}

// Subscription represents an active registration on a Manager. Close is
// idempotent and safe to call concurrently, mirroring the teacher's
// subscription semantics.
type Subscription interface {
	Close() error
}

type registration struct {
	point   Point
	mode    Mode
	matcher Matcher
	handler Handler
}

type subscription struct {
	manager *Manager
	once    sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.manager.mu.Lock()
		delete(s.manager.regs, s)
		s.manager.mu.Unlock()
	})
	return nil
}

// Manager dispatches fired events to every matching registered handler,
// awaiting every sync handler (a Block or exit_code 2 does not stop the
// others) while async handlers run fire-and-forget in background
// goroutines. One Manager is scoped to a single run, per spec.md §9
// "the Hook Manager is per-run".
type Manager struct {
	mu   sync.RWMutex
	regs map[*subscription]registration

	logger  telemetry.Logger
	asyncWG sync.WaitGroup
}

// New constructs an empty, ready-to-use Manager. logger receives the
// outcome of every async handler fired through Fire; a nil logger is
// replaced with telemetry.NoopLogger.
func New(logger telemetry.Logger) *Manager {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Manager{regs: make(map[*subscription]registration), logger: logger}
}

// ErrNilHandler is returned by Register when handler is nil.
var ErrNilHandler = errors.New("hooks: handler is required")

// Register adds handler for point under mode, optionally narrowed by
// matcher (nil matches every event at point). The returned Subscription
// unregisters the handler when closed.
func (m *Manager) Register(point Point, mode Mode, matcher Matcher, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if mode == "" {
		mode = Sync
	}
	sub := &subscription{manager: m}
	m.mu.Lock()
	m.regs[sub] = registration{point: point, mode: mode, matcher: matcher, handler: handler}
	m.mu.Unlock()
	return sub, nil
}

// Fire dispatches event to every registration at event.Point whose
// matcher accepts it. Sync handlers run concurrently and are all awaited;
// async handlers are launched in background goroutines tracked by Wait.
// Only sync handlers can set Blocked: the event is blocked iff a sync
// handler returns decision=Block or reports exit_code=2 (spec.md §4.12).
// Async handlers run fire-and-forget, their outcome logged but never
// consulted for the blocking decision. A sync handler error is treated as
// a non-blocking Continue with the error appended to Reasons, so a
// misbehaving handler cannot wedge the pipeline.
func (m *Manager) Fire(ctx context.Context, event Event) FireResult {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.RLock()
	var syncRegs, asyncRegs []registration
	for _, r := range m.regs {
		if r.point != event.Point {
			continue
		}
		if r.matcher != nil && !r.matcher(event) {
			continue
		}
		if r.mode == Async {
			asyncRegs = append(asyncRegs, r)
		} else {
			syncRegs = append(syncRegs, r)
		}
	}
	m.mu.RUnlock()

	for _, r := range asyncRegs {
		r := r
		m.asyncWG.Add(1)
		go func() {
			defer m.asyncWG.Done()
			res, err := r.handler.HandleEvent(context.WithoutCancel(ctx), event)
			if err != nil {
				m.logger.Error(ctx, "async hook handler failed", "point", event.Point, "run_id", event.RunID, "error", err)
				return
			}
			m.logger.Debug(ctx, "async hook handler completed", "point", event.Point, "run_id", event.RunID, "decision", res.Decision)
		}()
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]HookResult, 0, len(syncRegs))
		reasons []string
		blocked bool
	)
	for _, r := range syncRegs {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.handler.HandleEvent(ctx, event)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reasons = append(reasons, err.Error())
				return
			}
			results = append(results, res)
			if res.Decision == Block || res.ExitCode == 2 {
				blocked = true
				if res.Reason != "" {
					reasons = append(reasons, res.Reason)
				}
			}
		}()
	}
	wg.Wait()

	return FireResult{Blocked: blocked, Reasons: reasons, Results: results}
}

// Wait blocks until every async handler dispatched so far has returned.
// Intended for graceful shutdown at SessionEnd.
func (m *Manager) Wait() { m.asyncWG.Wait() }
