// Package resultmgr implements the Result Manager (C3): it drains the
// Event Channel (C1), mutates the owning Task in the Task Store (C2), and
// yields StreamResponse values for the streaming API. Grounded on the
// status/artifact mutation logic in the teacher's runtime/a2a/server.go
// TasksSend/TasksSendSubscribe handlers, generalized from inline
// request-handling into a standalone, reusable consumer.
package resultmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/agentfleet/orchestrator/eventchan"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
	"github.com/agentfleet/orchestrator/telemetry"
)

// ResponseKind discriminates the StreamResponse tagged union yielded by
// ProcessEvent, mirroring spec.md §4.3 ({Task, StatusUpdate,
// ArtifactUpdate, Message}).
type ResponseKind string

const (
	ResponseTask           ResponseKind = "task"
	ResponseStatusUpdate   ResponseKind = "status_update"
	ResponseArtifactUpdate ResponseKind = "artifact_update"
	ResponseMessage        ResponseKind = "message"
)

// StreamResponse is one item yielded by the streaming API for a single
// processed event.
type StreamResponse struct {
	Kind     ResponseKind
	Task     *task.Task
	Status   *task.StatusUpdate
	Artifact *task.Artifact
	Message  *task.Message
}

// Manager holds the (store, task_id) pair it owns mutation rights over.
// A Manager must not be shared across concurrent executions of the same
// task; the Request Handler (C5) guarantees at most one executor and one
// Manager are active per task at a time (spec.md §5).
type Manager struct {
	store  taskstore.Store
	taskID task.ID
	logger telemetry.Logger
}

// New creates a Manager bound to one task's lifecycle.
func New(store taskstore.Store, taskID task.ID, logger telemetry.Logger) *Manager {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Manager{store: store, taskID: taskID, logger: logger}
}

// ProcessEvent applies ev to the owned task and persists the result. It
// returns the StreamResponse to forward to the streaming API; the caller
// (C5) decides whether to actually write it out, so this method never
// fails merely because a downstream consumer has disconnected (spec.md §9
// "Event fan-out" design note).
func (m *Manager) ProcessEvent(ctx context.Context, ev eventchan.Event) (StreamResponse, error) {
	t, err := m.store.Load(ctx, m.taskID)
	if err != nil {
		return StreamResponse{}, fmt.Errorf("resultmgr: load task %s: %w", m.taskID, err)
	}

	if t.Status.State.Terminal() {
		// Invariant P2: a terminal task only accepts artifact appends with
		// LastChunk=false; every other event is a no-op.
		if ev.Kind != eventchan.KindArtifactUpdate || !ev.Artifact.Append || ev.Artifact.LastChunk {
			m.logger.Debug(ctx, "resultmgr: dropping event on terminal task",
				"task_id", string(m.taskID), "status", string(t.Status.State), "kind", string(ev.Kind))
			return m.snapshotResponse(t), nil
		}
	}

	resp, err := m.apply(t, ev)
	if err != nil {
		return StreamResponse{}, err
	}
	if err := m.store.Save(ctx, t); err != nil {
		return StreamResponse{}, fmt.Errorf("resultmgr: save task %s: %w", m.taskID, err)
	}
	return resp, nil
}

func (m *Manager) apply(t *task.Task, ev eventchan.Event) (StreamResponse, error) {
	switch ev.Kind {
	case eventchan.KindStatusUpdate:
		upd := *ev.Status
		if upd.Timestamp.IsZero() {
			upd.Timestamp = time.Now().UTC()
		}
		t.Status = upd
		return StreamResponse{Kind: ResponseStatusUpdate, Status: &t.Status}, nil

	case eventchan.KindArtifactUpdate:
		au := ev.Artifact
		a := t.ArtifactByID(au.Artifact.ID)
		if a == nil {
			a = &task.Artifact{ID: au.Artifact.ID, Name: au.Artifact.Name}
			t.Artifacts = append(t.Artifacts, a)
		}
		a.ApplyUpdate(au.Artifact.Parts, au.Append, au.LastChunk)
		return StreamResponse{Kind: ResponseArtifactUpdate, Artifact: a}, nil

	case eventchan.KindMessage:
		t.History = append(t.History, *ev.Message)
		return StreamResponse{Kind: ResponseMessage, Message: ev.Message}, nil

	default:
		// ModelChange and Notification events carry no Task mutation; the
		// stream consumer receives a Task snapshot for them, not the event
		// itself.
		return m.snapshotResponse(t), nil
	}
}

func (m *Manager) snapshotResponse(t *task.Task) StreamResponse {
	return StreamResponse{Kind: ResponseTask, Task: t}
}

// MarkFailed records a terminal Failed status with the given reason.
// Idempotent: calling it again on an already-terminal task is a no-op that
// returns the current task unchanged (spec.md §4.3, §8 round-trip
// property).
func (m *Manager) MarkFailed(ctx context.Context, reason string) (*task.Task, error) {
	t, err := m.store.Load(ctx, m.taskID)
	if err != nil {
		return nil, fmt.Errorf("resultmgr: load task %s: %w", m.taskID, err)
	}
	if t.Status.State.Terminal() {
		m.logger.Debug(ctx, "resultmgr: mark_failed no-op on terminal task",
			"task_id", string(m.taskID), "status", string(t.Status.State))
		return t, nil
	}
	t.Status = task.StatusUpdate{State: task.StatusFailed, Reason: reason, Timestamp: time.Now().UTC()}
	if err := m.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("resultmgr: save task %s: %w", m.taskID, err)
	}
	return t, nil
}

// SetCanceled records a terminal Canceled status with the given reason.
// Idempotent like MarkFailed: a no-op on an already-terminal task.
func (m *Manager) SetCanceled(ctx context.Context, reason string) (*task.Task, error) {
	t, err := m.store.Load(ctx, m.taskID)
	if err != nil {
		return nil, fmt.Errorf("resultmgr: load task %s: %w", m.taskID, err)
	}
	if t.Status.State.Terminal() {
		return t, nil
	}
	t.Status = task.StatusUpdate{State: task.StatusCanceled, Reason: reason, Timestamp: time.Now().UTC()}
	if err := m.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("resultmgr: save task %s: %w", m.taskID, err)
	}
	return t, nil
}

// Drain consumes every event from recv, applying each via ProcessEvent and
// invoking forward for each StreamResponse. Draining continues even if
// forward returns an error (a disconnected stream consumer), so the Task
// Store is always brought fully up to date; only a storage error aborts
// the drain.
func (m *Manager) Drain(ctx context.Context, recv eventchan.Receiver, forward func(StreamResponse) error) error {
	for {
		ev, ok := recv.Next(ctx)
		if !ok {
			return nil
		}
		resp, err := m.ProcessEvent(ctx, ev)
		if err != nil {
			return err
		}
		if forward != nil {
			if fwdErr := forward(resp); fwdErr != nil {
				m.logger.Debug(ctx, "resultmgr: stream consumer disconnected, continuing drain",
					"task_id", string(m.taskID), "error", fwdErr.Error())
			}
		}
	}
}
