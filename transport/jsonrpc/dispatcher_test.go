package jsonrpc_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/executor"
	"github.com/agentfleet/orchestrator/handler"
	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
	"github.com/agentfleet/orchestrator/taskstore/memory"
	"github.com/agentfleet/orchestrator/taskstore/push"
	"github.com/agentfleet/orchestrator/transport/jsonrpc"
)

type scriptedProvider struct {
	response provider.Response
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Complete(context.Context, string, []model.Message, []model.ToolSpec) (provider.Response, error) {
	return p.response, nil
}

func newDispatcher(t *testing.T) *jsonrpc.Dispatcher {
	t.Helper()
	p := &scriptedProvider{response: provider.Response{
		Messages: []model.Message{{Role: model.RoleAgent, Parts: []model.Part{model.TextPart{Text: "hi"}}}},
	}}
	ex := executor.New(p, nil, nil, nil, nil)
	h := handler.New(memory.New(), ex, push.NewMemoryStore(), handler.AgentCard{Name: "test-agent"}, nil)
	return jsonrpc.New(h)
}

func TestDispatch_MethodNotFound(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: "bogus/method"})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestDispatch_SendMessage(t *testing.T) {
	d := newDispatcher(t)
	params, _ := json.Marshal(map[string]any{
		"message": map[string]any{
			"role":  "user",
			"parts": []map[string]any{{"type": "text", "text": "hello"}},
		},
	})
	resp := d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodSendMessage, Params: params})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestDispatch_TasksGetNotFound(t *testing.T) {
	d := newDispatcher(t)
	params, _ := json.Marshal(map[string]any{"id": "does-not-exist"})
	resp := d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodTasksGet, Params: params})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeTaskNotFound, resp.Error.Code)
}

func TestDispatch_InvalidParams(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodTasksGet, Params: []byte(`{"id": 5}`)})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestDispatchStream_SendMessageStream(t *testing.T) {
	d := newDispatcher(t)
	params, _ := json.Marshal(map[string]any{
		"message": map[string]any{
			"role":  "user",
			"parts": []map[string]any{{"type": "text", "text": "hello"}},
		},
	})
	var responses []*jsonrpc.Response
	d.DispatchStream(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodSendMessageStream, Params: params}, func(r *jsonrpc.Response) bool {
		responses = append(responses, r)
		return true
	})
	require.NotEmpty(t, responses)
	for _, r := range responses {
		require.Nil(t, r.Error)
	}
}

func TestDispatch_AgentCard(t *testing.T) {
	d := newDispatcher(t)
	resp := d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodAgentCard})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestDispatch_PushNotificationRoundTrip(t *testing.T) {
	d := newDispatcher(t)
	setParams, _ := json.Marshal(map[string]any{"task_id": "t1", "url": "https://example.com/hook"})
	resp := d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodPushConfigSet, Params: setParams})
	require.Nil(t, resp.Error)

	getParams, _ := json.Marshal(map[string]any{"task_id": "t1"})
	resp = d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodPushConfigGet, Params: getParams})
	require.Nil(t, resp.Error)

	resp = d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodPushConfigDelete, Params: getParams})
	require.Nil(t, resp.Error)

	resp = d.Dispatch(context.Background(), jsonrpc.Request{JSONRPC: "2.0", Method: jsonrpc.MethodPushConfigGet, Params: getParams})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeTaskNotFound, resp.Error.Code)
}
