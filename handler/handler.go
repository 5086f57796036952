// Package handler implements the Request Handler (C5): the public
// operation surface (send_message, send_message_stream, get_task,
// list_tasks, cancel_task, get_agent_card, push_notification_config CRUD)
// that task resolution, executor spawning, and event draining sit behind.
// Grounded on the teacher's runtime/a2a/server.go TasksSend/TasksSendSubscribe
// (task-state lifecycle around one executor run, including the deferred
// cleanup and cancel-registry pattern) adapted to this module's
// taskstore.Store/resultmgr.Manager/executor.Executor stack.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agentfleet/orchestrator/eventchan"
	"github.com/agentfleet/orchestrator/executor"
	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/resultmgr"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
	"github.com/agentfleet/orchestrator/taskstore/push"
	"github.com/agentfleet/orchestrator/telemetry"
)

// Sentinel errors returned by Handler operations, matching spec.md §4.5's
// named failure modes.
var (
	ErrTaskNotFound                = errors.New("handler: task not found")
	ErrTaskNotCancelable           = errors.New("handler: task is already in a terminal state")
	ErrPushNotificationNotSupported = errors.New("handler: push notification config is not supported")
)

// AgentCard is the capability manifest returned by GetAgentCard.
type AgentCard struct {
	Name               string
	Description        string
	Capabilities       []string
	SupportedExtensions []string
}

// Handler implements the Request Handler operations.
type Handler struct {
	store     taskstore.Store
	executor  *executor.Executor
	push      push.Store
	agentCard AgentCard
	logger    telemetry.Logger

	mu      sync.Mutex
	cancels map[task.ID]context.CancelFunc
}

// New constructs a Handler. pushStore may be nil, in which case every
// push_notification_config operation returns ErrPushNotificationNotSupported.
func New(store taskstore.Store, exec *executor.Executor, pushStore push.Store, card AgentCard, logger telemetry.Logger) *Handler {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Handler{
		store:     store,
		executor:  exec,
		push:      pushStore,
		agentCard: card,
		logger:    logger,
		cancels:   make(map[task.ID]context.CancelFunc),
	}
}

// resolveOrCreateTask implements spec.md §4.5 "Task resolution": continue
// an existing task named by msg.TaskID, or create a fresh one.
func (h *Handler) resolveOrCreateTask(ctx context.Context, msg task.Message) (*task.Task, error) {
	if msg.TaskID != "" {
		if t, err := h.store.Load(ctx, msg.TaskID); err == nil {
			return t, nil
		} else if !errors.Is(err, taskstore.ErrNotFound) {
			return nil, err
		}
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = task.NewContextID()
	}
	t := task.NewTask(task.NewID(), contextID)
	if err := h.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *Handler) registerCancel(id task.ID, cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancels[id] = cancel
	h.mu.Unlock()
}

func (h *Handler) clearCancel(id task.ID) {
	h.mu.Lock()
	delete(h.cancels, id)
	h.mu.Unlock()
}

func (h *Handler) lookupCancel(id task.ID) (context.CancelFunc, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.cancels[id]
	return c, ok
}

// spawn starts the executor for t's turn and returns the manager draining
// its events plus a function that blocks until the run is done.
func (h *Handler) spawn(t *task.Task, msg task.Message) (*resultmgr.Manager, eventchan.Receiver, func()) {
	ch := eventchan.New()
	sender := ch.Sender()
	receiver := ch.Receiver()
	mgr := resultmgr.New(h.store, t.ID, h.logger)

	execCtx, cancel := context.WithCancel(context.Background())
	h.registerCancel(t.ID, cancel)

	history := make([]model.Message, 0, len(t.History))
	for _, m := range t.History {
		history = append(history, model.Message{ID: m.MessageID, Role: m.Role, Parts: m.Parts})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sender.Close()
		defer cancel()
		ec := executor.ExecContext{
			UserMessage: model.Message{ID: msg.MessageID, Role: msg.Role, Parts: msg.Parts},
			TaskID:      t.ID,
			ContextID:   t.ContextID,
			History:     history,
		}
		if err := h.executor.Execute(execCtx, ec, sender); err != nil {
			h.logger.Error(execCtx, "handler: executor event send failed", "task_id", string(t.ID), "error", err.Error())
		}
	}()

	return mgr, receiver, func() { <-done; h.clearCancel(t.ID) }
}

// SendMessage resolves or creates the task, runs the executor to
// completion, and returns the final Task.
func (h *Handler) SendMessage(ctx context.Context, msg task.Message) (*task.Task, error) {
	t, err := h.resolveOrCreateTask(ctx, msg)
	if err != nil {
		return nil, err
	}
	mgr, receiver, wait := h.spawn(t, msg)
	if err := mgr.Drain(ctx, receiver, nil); err != nil {
		wait()
		return nil, err
	}
	wait()
	return h.store.Load(ctx, t.ID)
}

// SendMessageStream resolves or creates the task and returns an iterator
// that yields each StreamResponse as soon as the Result Manager produces
// it, in strict production order. The stream terminates after the
// terminal status event, or when the consumer stops iterating early — in
// which case the executor is canceled (spec.md §4.5 "Streaming invariants").
func (h *Handler) SendMessageStream(ctx context.Context, msg task.Message) (*task.Task, func(yield func(resultmgr.StreamResponse) bool), error) {
	t, err := h.resolveOrCreateTask(ctx, msg)
	if err != nil {
		return nil, nil, err
	}
	mgr, receiver, wait := h.spawn(t, msg)

	iter := func(yield func(resultmgr.StreamResponse) bool) {
		defer wait()
		consumerLeft := false
		forward := func(r resultmgr.StreamResponse) error {
			if consumerLeft {
				return nil
			}
			if !yield(r) {
				consumerLeft = true
				if cancel, ok := h.lookupCancel(t.ID); ok {
					cancel()
				}
				return fmt.Errorf("handler: stream consumer disconnected")
			}
			return nil
		}
		_ = mgr.Drain(ctx, receiver, forward)
	}
	return t, iter, nil
}

// GetTask loads a task by ID.
func (h *Handler) GetTask(ctx context.Context, id task.ID) (*task.Task, error) {
	t, err := h.store.Load(ctx, id)
	if errors.Is(err, taskstore.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// ListTasks delegates directly to the Task Store.
func (h *Handler) ListTasks(ctx context.Context, filter taskstore.Filter) (taskstore.Page, error) {
	return h.store.List(ctx, filter)
}

// CancelTask interrupts an in-flight executor (if any) and records a
// terminal Canceled status. A task already in a terminal state cannot be
// canceled.
func (h *Handler) CancelTask(ctx context.Context, id task.ID) (*task.Task, error) {
	t, err := h.store.Load(ctx, id)
	if errors.Is(err, taskstore.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Status.State.Terminal() {
		return nil, ErrTaskNotCancelable
	}
	if cancel, ok := h.lookupCancel(id); ok {
		cancel()
	}
	mgr := resultmgr.New(h.store, id, h.logger)
	return mgr.SetCanceled(ctx, "canceled by caller")
}

// GetAgentCard returns the static capability manifest.
func (h *Handler) GetAgentCard() AgentCard { return h.agentCard }

// SetPushNotificationConfig creates or replaces the push config for a task.
func (h *Handler) SetPushNotificationConfig(ctx context.Context, cfg push.Config) error {
	if h.push == nil {
		return ErrPushNotificationNotSupported
	}
	return h.push.Set(ctx, cfg)
}

// GetPushNotificationConfig loads the push config for a task.
func (h *Handler) GetPushNotificationConfig(ctx context.Context, taskID string) (push.Config, error) {
	if h.push == nil {
		return push.Config{}, ErrPushNotificationNotSupported
	}
	return h.push.Get(ctx, taskID)
}

// DeletePushNotificationConfig removes the push config for a task.
func (h *Handler) DeletePushNotificationConfig(ctx context.Context, taskID string) error {
	if h.push == nil {
		return ErrPushNotificationNotSupported
	}
	return h.push.Delete(ctx, taskID)
}
