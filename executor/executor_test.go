package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/eventchan"
	"github.com/agentfleet/orchestrator/executor"
	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
	"github.com/agentfleet/orchestrator/task"
)

type scriptedProvider struct {
	responses []provider.Response
	errs      []error
	call      int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(context.Context, string, []model.Message, []model.ToolSpec) (provider.Response, error) {
	i := p.call
	p.call++
	if i < len(p.errs) && p.errs[i] != nil {
		return provider.Response{}, p.errs[i]
	}
	return p.responses[i], nil
}

type echoTool struct{}

func (echoTool) Spec() model.ToolSpec { return model.ToolSpec{Name: "echo", Description: "echoes input"} }
func (echoTool) Invoke(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	return input, nil
}

func drain(t *testing.T, recv eventchan.Receiver) []eventchan.Event {
	t.Helper()
	var out []eventchan.Event
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		ev, ok := recv.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestExecute_NoToolCallsCompletes(t *testing.T) {
	p := &scriptedProvider{responses: []provider.Response{
		{Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "done"}}}}},
	}}
	ex := executor.New(p, nil, nil, nil, nil)
	ch := eventchan.New()
	sender := ch.Sender()

	go func() {
		_ = ex.Execute(context.Background(), executor.ExecContext{TaskID: task.NewID(), ContextID: task.NewContextID()}, sender)
		sender.Close()
	}()

	events := drain(t, ch.Receiver())
	require.Len(t, events, 3) // Working, Message, Completed
	require.Equal(t, eventchan.KindStatusUpdate, events[0].Kind)
	require.Equal(t, task.StatusWorking, events[0].Status.State)
	require.Equal(t, eventchan.KindMessage, events[1].Kind)
	require.Equal(t, eventchan.KindStatusUpdate, events[2].Kind)
	require.Equal(t, task.StatusCompleted, events[2].Status.State)
}

func TestExecute_ToolCallLoopsThenCompletes(t *testing.T) {
	p := &scriptedProvider{responses: []provider.Response{
		{ToolCalls: []model.ToolUsePart{{ToolCallID: "c1", Name: "echo", Input: json.RawMessage(`{"x":1}`)}}},
		{Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "final"}}}}},
	}}
	ex := executor.New(p, []executor.Tool{echoTool{}}, executor.AlwaysAllow, nil, nil)
	ch := eventchan.New()
	sender := ch.Sender()

	go func() {
		_ = ex.Execute(context.Background(), executor.ExecContext{TaskID: task.NewID(), ContextID: task.NewContextID()}, sender)
		sender.Close()
	}()

	events := drain(t, ch.Receiver())
	require.Equal(t, task.StatusWorking, events[0].Status.State)
	last := events[len(events)-1]
	require.Equal(t, task.StatusCompleted, last.Status.State)
}

func TestExecute_ProviderErrorEmitsFailed(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("boom")}, responses: make([]provider.Response, 1)}
	ex := executor.New(p, nil, nil, nil, nil)
	ch := eventchan.New()
	sender := ch.Sender()

	go func() {
		_ = ex.Execute(context.Background(), executor.ExecContext{TaskID: task.NewID(), ContextID: task.NewContextID()}, sender)
		sender.Close()
	}()

	events := drain(t, ch.Receiver())
	last := events[len(events)-1]
	require.Equal(t, task.StatusFailed, last.Status.State)
	require.Contains(t, last.Status.Reason, "boom")
}

func TestExecute_CancellationEmitsCanceled(t *testing.T) {
	p := &scriptedProvider{responses: make([]provider.Response, 1)}
	ex := executor.New(p, nil, nil, nil, nil)
	ch := eventchan.New()
	sender := ch.Sender()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	go func() {
		_ = ex.Execute(ctx, executor.ExecContext{TaskID: task.NewID(), ContextID: task.NewContextID()}, sender)
		sender.Close()
	}()

	events := drain(t, ch.Receiver())
	last := events[len(events)-1]
	require.Equal(t, task.StatusCanceled, last.Status.State)
}

func TestExecute_ToolDenyProducesErrorResult(t *testing.T) {
	p := &scriptedProvider{responses: []provider.Response{
		{ToolCalls: []model.ToolUsePart{{ToolCallID: "c1", Name: "echo", Input: json.RawMessage(`{}`)}}},
		{Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "final"}}}}},
	}}
	deny := func(context.Context, string, json.RawMessage) executor.PermissionDecision { return executor.PermissionDeny }
	ex := executor.New(p, []executor.Tool{echoTool{}}, deny, nil, nil)
	ch := eventchan.New()
	sender := ch.Sender()

	go func() {
		_ = ex.Execute(context.Background(), executor.ExecContext{TaskID: task.NewID(), ContextID: task.NewContextID()}, sender)
		sender.Close()
	}()

	events := drain(t, ch.Receiver())
	last := events[len(events)-1]
	require.Equal(t, task.StatusCompleted, last.Status.State)
}
