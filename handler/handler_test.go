package handler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/executor"
	"github.com/agentfleet/orchestrator/handler"
	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
	"github.com/agentfleet/orchestrator/resultmgr"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
	"github.com/agentfleet/orchestrator/taskstore/memory"
	"github.com/agentfleet/orchestrator/taskstore/push"
)

type scriptedProvider struct {
	response provider.Response
	err      error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(context.Context, string, []model.Message, []model.ToolSpec) (provider.Response, error) {
	return p.response, p.err
}

func newHandler(t *testing.T, p provider.Provider) (*handler.Handler, taskstore.Store) {
	t.Helper()
	store := memory.New()
	ex := executor.New(p, nil, nil, nil, nil)
	card := handler.AgentCard{Name: "test-agent"}
	return handler.New(store, ex, push.NewMemoryStore(), card, nil), store
}

func TestSendMessage_CreatesTaskAndCompletes(t *testing.T) {
	p := &scriptedProvider{response: provider.Response{
		Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
	}}
	h, _ := newHandler(t, p)

	msg := task.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hello"}}}
	result, err := h.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, result.Status.State)
	require.Len(t, result.History, 1)
}

func TestSendMessage_ResumesExistingTask(t *testing.T) {
	p := &scriptedProvider{response: provider.Response{
		Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
	}}
	h, store := newHandler(t, p)

	existing := task.NewTask(task.NewID(), task.NewContextID())
	require.NoError(t, store.Save(context.Background(), existing))
	existing.Status.State = task.StatusCompleted // make a terminal copy irrelevant; test resume path only

	msg := task.Message{TaskID: existing.ID, Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "again"}}}
	result, err := h.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, existing.ID, result.ID)
}

func TestSendMessageStream_YieldsInOrderAndStopsOnTerminal(t *testing.T) {
	p := &scriptedProvider{response: provider.Response{
		Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
	}}
	h, _ := newHandler(t, p)

	msg := task.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hello"}}}
	_, iter, err := h.SendMessageStream(context.Background(), msg)
	require.NoError(t, err)

	var kinds []resultmgr.ResponseKind
	for resp := range iter {
		kinds = append(kinds, resp.Kind)
	}
	require.NotEmpty(t, kinds)
	require.Equal(t, resultmgr.ResponseStatusUpdate, kinds[0])
	require.Equal(t, resultmgr.ResponseStatusUpdate, kinds[len(kinds)-1])
}

func TestSendMessageStream_EarlyDisconnectCancelsExecutor(t *testing.T) {
	p := &scriptedProvider{response: provider.Response{
		Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
	}}
	h, _ := newHandler(t, p)

	msg := task.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hello"}}}
	_, iter, err := h.SendMessageStream(context.Background(), msg)
	require.NoError(t, err)

	count := 0
	for range iter {
		count++
		break // disconnect after the first event
	}
	require.Equal(t, 1, count)
}

func TestGetTask_NotFound(t *testing.T) {
	h, _ := newHandler(t, &scriptedProvider{})
	_, err := h.GetTask(context.Background(), task.NewID())
	require.ErrorIs(t, err, handler.ErrTaskNotFound)
}

func TestCancelTask_TerminalIsRejected(t *testing.T) {
	h, store := newHandler(t, &scriptedProvider{})
	t1 := task.NewTask(task.NewID(), task.NewContextID())
	t1.Status.State = task.StatusCompleted
	require.NoError(t, store.Save(context.Background(), t1))

	_, err := h.CancelTask(context.Background(), t1.ID)
	require.ErrorIs(t, err, handler.ErrTaskNotCancelable)
}

func TestCancelTask_MarksCanceled(t *testing.T) {
	h, store := newHandler(t, &scriptedProvider{})
	t1 := task.NewTask(task.NewID(), task.NewContextID())
	t1.Status.State = task.StatusWorking
	require.NoError(t, store.Save(context.Background(), t1))

	result, err := h.CancelTask(context.Background(), t1.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusCanceled, result.Status.State)
}

func TestPushNotificationConfig_UnsupportedWithoutStore(t *testing.T) {
	store := memory.New()
	ex := executor.New(&scriptedProvider{}, nil, nil, nil, nil)
	h := handler.New(store, ex, nil, handler.AgentCard{}, nil)

	err := h.SetPushNotificationConfig(context.Background(), push.Config{TaskID: "t1"})
	require.ErrorIs(t, err, handler.ErrPushNotificationNotSupported)

	_, err = h.GetPushNotificationConfig(context.Background(), "t1")
	require.ErrorIs(t, err, handler.ErrPushNotificationNotSupported)

	err = h.DeletePushNotificationConfig(context.Background(), "t1")
	require.ErrorIs(t, err, handler.ErrPushNotificationNotSupported)
}

func TestPushNotificationConfig_RoundTrip(t *testing.T) {
	h, _ := newHandler(t, &scriptedProvider{})
	cfg := push.Config{TaskID: "t1", URL: "https://example.com/hook"}
	require.NoError(t, h.SetPushNotificationConfig(context.Background(), cfg))

	got, err := h.GetPushNotificationConfig(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, cfg.URL, got.URL)

	require.NoError(t, h.DeletePushNotificationConfig(context.Background(), "t1"))
	_, err = h.GetPushNotificationConfig(context.Background(), "t1")
	require.ErrorIs(t, err, push.ErrNotFound)
}
