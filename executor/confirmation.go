package executor

import (
	"context"
	"sync"
)

// ConfirmationGate suspends a tool-loop iteration awaiting an
// out-of-band confirmation decision (spec.md §4.4: "Confirmation-pending
// tools suspend the loop until a separate handle_confirmation call
// arrives"). One gate is shared by every tool call an Executor ever
// suspends on; each call is keyed by its own tool-call ID.
type ConfirmationGate struct {
	mu      sync.Mutex
	waiters map[string]chan bool
}

// NewConfirmationGate constructs an empty gate.
func NewConfirmationGate() *ConfirmationGate {
	return &ConfirmationGate{waiters: make(map[string]chan bool)}
}

// Await blocks until Resolve is called for toolCallID or the context is
// canceled (a suspension point per spec.md §5).
// Cancellation is checked here because a pending confirmation is exactly
// the kind of suspension point the spec requires cancel() to interrupt.
func (g *ConfirmationGate) Await(ctx context.Context, toolCallID string) (bool, error) {
	ch := g.register(toolCallID)
	select {
	case approved := <-ch:
		return approved, nil
	case <-ctx.Done():
		g.clear(toolCallID)
		return false, ctx.Err()
	}
}

// Resolve delivers a confirmation decision for toolCallID. It is a no-op
// if no call is currently awaiting confirmation under that ID (a late or
// duplicate handle_confirmation call).
func (g *ConfirmationGate) Resolve(toolCallID string, approved bool) {
	g.mu.Lock()
	ch, ok := g.waiters[toolCallID]
	if ok {
		delete(g.waiters, toolCallID)
	}
	g.mu.Unlock()
	if ok {
		ch <- approved
		close(ch)
	}
}

func (g *ConfirmationGate) register(toolCallID string) chan bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan bool, 1)
	g.waiters[toolCallID] = ch
	return ch
}

func (g *ConfirmationGate) clear(toolCallID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters, toolCallID)
}
