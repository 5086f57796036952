package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/agentfleet/orchestrator/handler"
	"github.com/agentfleet/orchestrator/resultmgr"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
	"github.com/agentfleet/orchestrator/taskstore/push"
)

// Dispatcher binds the method table to a Handler. It holds no state of its
// own beyond the Handler, so one Dispatcher is safely shared across every
// connection.
type Dispatcher struct {
	handler *handler.Handler
}

// New constructs a Dispatcher over h.
func New(h *handler.Handler) *Dispatcher { return &Dispatcher{handler: h} }

// Dispatch handles every method except message/sendStream, which requires
// a streaming sink and is served by DispatchStream instead.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) *Response {
	switch req.Method {
	case MethodSendMessage:
		return d.sendMessage(ctx, req)
	case MethodTasksGet:
		return d.tasksGet(ctx, req)
	case MethodTasksList:
		return d.tasksList(ctx, req)
	case MethodTasksCancel:
		return d.tasksCancel(ctx, req)
	case MethodAgentCard:
		return d.agentCard(req)
	case MethodPushConfigSet:
		return d.pushConfigSet(ctx, req)
	case MethodPushConfigGet:
		return d.pushConfigGet(ctx, req)
	case MethodPushConfigDelete:
		return d.pushConfigDelete(ctx, req)
	case MethodSendMessageStream:
		return errorResponse(req.ID, CodeInvalidParams, "message/sendStream requires a streaming transport")
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// IsStreamingMethod reports whether req must be served via DispatchStream.
func (d *Dispatcher) IsStreamingMethod(method string) bool { return method == MethodSendMessageStream }

// DispatchStream serves message/sendStream, invoking emit once per
// StreamResponse in strict production order (spec.md §4.5 "Streaming
// invariants"). It returns once the stream ends. If emit returns false the
// underlying executor is canceled and DispatchStream returns promptly.
func (d *Dispatcher) DispatchStream(ctx context.Context, req Request, emit func(*Response) bool) {
	var params struct {
		Message wireMessage `json:"message"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		emit(errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error()))
		return
	}
	msg, err := decodeMessage(params.Message)
	if err != nil {
		emit(errorResponse(req.ID, CodeInvalidParams, err.Error()))
		return
	}

	_, iter, err := d.handler.SendMessageStream(ctx, msg)
	if err != nil {
		emit(mapHandlerError(req.ID, err))
		return
	}
	iter(func(sr resultmgr.StreamResponse) bool {
		return emit(resultResponse(req.ID, encodeStreamResponse(sr)))
	})
}

func encodeStreamResponse(sr resultmgr.StreamResponse) map[string]any {
	out := map[string]any{"kind": string(sr.Kind)}
	if sr.Task != nil {
		out["task"] = encodeTask(sr.Task, -1)
	}
	if sr.Status != nil {
		out["status"] = sr.Status.State
	}
	if sr.Artifact != nil {
		out["artifact"] = encodeArtifact(sr.Artifact)
	}
	if sr.Message != nil {
		out["message"] = encodeMessage(*sr.Message)
	}
	return out
}

func (d *Dispatcher) sendMessage(ctx context.Context, req Request) *Response {
	var params struct {
		Message wireMessage `json:"message"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	msg, err := decodeMessage(params.Message)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidParams, err.Error())
	}
	t, err := d.handler.SendMessage(ctx, msg)
	if err != nil {
		return mapHandlerError(req.ID, err)
	}
	return resultResponse(req.ID, encodeTask(t, -1))
}

func (d *Dispatcher) tasksGet(ctx context.Context, req Request) *Response {
	var params struct {
		ID            string `json:"id"`
		HistoryLength int    `json:"history_length"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	if params.ID == "" {
		return errorResponse(req.ID, CodeInvalidParams, "id is required")
	}
	historyLength := -1
	if params.HistoryLength > 0 {
		historyLength = params.HistoryLength
	}
	t, err := d.handler.GetTask(ctx, task.ID(params.ID))
	if err != nil {
		return mapHandlerError(req.ID, err)
	}
	return resultResponse(req.ID, encodeTask(t, historyLength))
}

func (d *Dispatcher) tasksList(ctx context.Context, req Request) *Response {
	var params struct {
		ContextID string `json:"context_id,omitempty"`
		Status    string `json:"status,omitempty"`
		PageSize  int    `json:"page_size,omitempty"`
		PageToken string `json:"page_token,omitempty"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
		}
	}
	filter := taskstore.Filter{
		ContextID: task.ContextID(params.ContextID), Status: task.Status(params.Status),
		HasStatus: params.Status != "", PageSize: params.PageSize, PageToken: params.PageToken,
	}
	page, err := d.handler.ListTasks(ctx, filter)
	if err != nil {
		return mapHandlerError(req.ID, err)
	}
	tasks := make([]wireTask, len(page.Tasks))
	for i, t := range page.Tasks {
		tasks[i] = encodeTask(t, -1)
	}
	return resultResponse(req.ID, map[string]any{"tasks": tasks, "next_page_token": page.NextPageToken})
}

func (d *Dispatcher) tasksCancel(ctx context.Context, req Request) *Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	t, err := d.handler.CancelTask(ctx, task.ID(params.ID))
	if err != nil {
		return mapHandlerError(req.ID, err)
	}
	return resultResponse(req.ID, encodeTask(t, -1))
}

func (d *Dispatcher) agentCard(req Request) *Response {
	card := d.handler.GetAgentCard()
	return resultResponse(req.ID, map[string]any{
		"name": card.Name, "description": card.Description,
		"capabilities": card.Capabilities, "supported_extensions": card.SupportedExtensions,
	})
}

func (d *Dispatcher) pushConfigSet(ctx context.Context, req Request) *Response {
	var params struct {
		TaskID  string            `json:"task_id"`
		URL     string            `json:"url"`
		Token   string            `json:"token"`
		Headers map[string]string `json:"headers,omitempty"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	cfg := push.Config{TaskID: params.TaskID, URL: params.URL, Token: params.Token, Headers: params.Headers}
	if err := d.handler.SetPushNotificationConfig(ctx, cfg); err != nil {
		return mapHandlerError(req.ID, err)
	}
	return resultResponse(req.ID, encodePushConfig(cfg))
}

func (d *Dispatcher) pushConfigGet(ctx context.Context, req Request) *Response {
	var params struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	cfg, err := d.handler.GetPushNotificationConfig(ctx, params.TaskID)
	if err != nil {
		return mapHandlerError(req.ID, err)
	}
	return resultResponse(req.ID, encodePushConfig(cfg))
}

func (d *Dispatcher) pushConfigDelete(ctx context.Context, req Request) *Response {
	var params struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	if err := d.handler.DeletePushNotificationConfig(ctx, params.TaskID); err != nil {
		return mapHandlerError(req.ID, err)
	}
	return resultResponse(req.ID, map[string]any{"deleted": true})
}

// mapHandlerError maps the Request Handler's sentinel errors onto this
// surface's domain error codes (spec.md §6).
func mapHandlerError(id json.RawMessage, err error) *Response {
	switch {
	case errors.Is(err, handler.ErrTaskNotFound):
		return errorResponse(id, CodeTaskNotFound, err.Error())
	case errors.Is(err, handler.ErrTaskNotCancelable):
		return errorResponse(id, CodeTaskNotCancelable, err.Error())
	case errors.Is(err, handler.ErrPushNotificationNotSupported):
		return errorResponse(id, CodePushNotificationNotSupported, err.Error())
	case errors.Is(err, push.ErrNotFound):
		return errorResponse(id, CodeTaskNotFound, err.Error())
	default:
		var ip *invalidParamsError
		if errors.As(err, &ip) {
			return errorResponse(id, CodeInvalidParams, ip.msg)
		}
		return errorResponse(id, CodeInternalError, "internal error")
	}
}
