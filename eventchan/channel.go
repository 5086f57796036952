package eventchan

import (
	"context"
	"sync"
)

// Capacity is the fixed bound on queued-but-undelivered events per task, per
// spec.md §4.1. Producers suspend (block) once the channel is at capacity;
// events are never dropped.
const Capacity = 256

// Channel is a bounded, multi-producer/single-consumer pipe of Events for
// one task. The executor and any sub-tools it spawns each hold a cloned
// Sender; the Result Manager owns the single Receiver.
//
// Close semantics: once every cloned Sender has been closed, the Receiver
// observes end-of-stream after draining any events still queued. No
// priority, no reordering: events are delivered in strict producer order.
type Channel struct {
	ch chan Event

	mu       sync.Mutex
	refs     int
	closedCh chan struct{}
	once     sync.Once
}

// New creates a Channel with one outstanding Sender reference (the caller's).
func New() *Channel {
	return &Channel{
		ch:       make(chan Event, Capacity),
		refs:     1,
		closedCh: make(chan struct{}),
	}
}

// Sender is a producer handle. Multiple Senders may be held concurrently by
// the executor and its spawned tools; each must be closed exactly once when
// the producer is done emitting.
type Sender struct{ c *Channel }

// Clone returns a new Sender referencing the same underlying Channel,
// incrementing the producer reference count. Use Clone when a tool call
// spawns a concurrent sub-producer that must emit its own events.
func (c *Channel) Clone() Sender {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
	return Sender{c: c}
}

// Sender returns the Channel's initial Sender handle.
func (c *Channel) Sender() Sender { return Sender{c: c} }

// Send enqueues an event, blocking (suspending the caller) if the channel is
// at capacity, until there is room or the context is done. Send must not be
// called after the underlying channel has been closed.
func (s Sender) Send(ctx context.Context, ev Event) error {
	select {
	case s.c.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases this Sender's reference. Once every Sender reference has
// been closed, the underlying channel is closed so the Receiver observes
// end-of-stream after draining queued events. Each call releases one
// reference, so a Sender must be closed exactly once; closing the
// underlying channel itself happens only once.
func (s Sender) Close() {
	s.c.mu.Lock()
	s.c.refs--
	remaining := s.c.refs
	s.c.mu.Unlock()
	if remaining <= 0 {
		s.c.once.Do(func() {
			close(s.c.ch)
			close(s.c.closedCh)
		})
	}
}

// Receiver is the single consumer handle, owned by the Result Manager.
type Receiver struct{ c *Channel }

// Receiver returns the Channel's Receiver handle. Only one goroutine should
// ever drain a given Channel's Receiver.
func (c *Channel) Receiver() Receiver { return Receiver{c: c} }

// Next blocks for the next event. The second return value is false once the
// channel has been drained and closed.
func (r Receiver) Next(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-r.c.ch:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// Drain returns a function suitable for range-over-func iteration
// (`for ev := range r.Drain(ctx)`), stopping when the channel closes or ctx
// is done.
func (r Receiver) Drain(ctx context.Context) func(yield func(Event) bool) {
	return func(yield func(Event) bool) {
		for {
			ev, ok := r.Next(ctx)
			if !ok {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}
