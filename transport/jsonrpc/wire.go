// Package jsonrpc implements the JSON-RPC 2.0 method table of spec.md §6
// over the Request Handler (C5): message/send, message/sendStream,
// tasks/get, tasks/list, tasks/cancel, agent/authenticatedExtendedCard,
// and tasks/pushNotificationConfig/*. It is transport-agnostic — callers
// feed it a decoded Request and get back a Response (or, for the
// streaming method, a sequence of Responses) — so transport/httpapi can
// mount it over HTTP without either package depending on the other's
// wire framing.
package jsonrpc

import (
	"encoding/json"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore/push"
)

// Method names, matching spec.md §6 exactly.
const (
	MethodSendMessage        = "message/send"
	MethodSendMessageStream  = "message/sendStream"
	MethodTasksGet           = "tasks/get"
	MethodTasksList          = "tasks/list"
	MethodTasksCancel        = "tasks/cancel"
	MethodAgentCard          = "agent/authenticatedExtendedCard"
	MethodPushConfigSet      = "tasks/pushNotificationConfig/set"
	MethodPushConfigGet      = "tasks/pushNotificationConfig/get"
	MethodPushConfigDelete   = "tasks/pushNotificationConfig/delete"
)

// Error codes. -32700/-32601/-32602 are the JSON-RPC 2.0 reserved codes;
// the rest are this surface's domain codes (spec.md §6).
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602

	CodeTaskNotFound                 = 1
	CodeTaskNotCancelable             = 2
	CodePushNotificationNotSupported = 3
	CodeInternalError                 = 4
)

// Request is one JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 reply. Exactly one of Result or Error is
// set, as required by the spec.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// wirePart is the tagged-union JSON encoding of model.Part on the wire, per
// spec.md §3 ("A Part is a tagged variant").
type wirePart struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	Data      []byte          `json:"data,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	Bytes     []byte          `json:"bytes,omitempty"`
	URI       string          `json:"uri,omitempty"`
	JSON      json.RawMessage `json:"json,omitempty"`
}

func encodePart(p model.Part) wirePart {
	switch v := p.(type) {
	case model.TextPart:
		return wirePart{Type: "text", Text: v.Text}
	case model.ImagePart:
		return wirePart{Type: "image", MediaType: v.MediaType, Data: v.Data}
	case model.FilePart:
		return wirePart{Type: "file", Filename: v.Filename, MediaType: v.MediaType, Bytes: v.Bytes, URI: v.URI}
	case model.DataPart:
		return wirePart{Type: "data", JSON: v.JSON}
	default:
		return wirePart{Type: "unsupported"}
	}
}

func encodeParts(parts []model.Part) []wirePart {
	out := make([]wirePart, len(parts))
	for i, p := range parts {
		out[i] = encodePart(p)
	}
	return out
}

func decodePart(w wirePart) (model.Part, error) {
	switch w.Type {
	case "text":
		return model.TextPart{Text: w.Text}, nil
	case "image":
		return model.ImagePart{MediaType: w.MediaType, Data: w.Data}, nil
	case "file":
		return model.FilePart{Filename: w.Filename, MediaType: w.MediaType, Bytes: w.Bytes, URI: w.URI}, nil
	case "data":
		return model.DataPart{JSON: w.JSON}, nil
	default:
		return nil, &invalidParamsError{msg: "unknown part type: " + w.Type}
	}
}

func decodeParts(parts []wirePart) ([]model.Part, error) {
	out := make([]model.Part, len(parts))
	for i, w := range parts {
		p, err := decodePart(w)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

type invalidParamsError struct{ msg string }

func (e *invalidParamsError) Error() string { return e.msg }

// wireMessage is the wire shape of task.Message.
type wireMessage struct {
	MessageID        string     `json:"message_id,omitempty"`
	Role             string     `json:"role"`
	Parts            []wirePart `json:"parts"`
	ContextID        string     `json:"context_id,omitempty"`
	TaskID           string     `json:"task_id,omitempty"`
	ReferenceTaskIDs []string   `json:"reference_task_ids,omitempty"`
}

func encodeMessage(m task.Message) wireMessage {
	refs := make([]string, len(m.ReferenceTaskIDs))
	for i, r := range m.ReferenceTaskIDs {
		refs[i] = string(r)
	}
	return wireMessage{
		MessageID: m.MessageID, Role: string(m.Role), Parts: encodeParts(m.Parts),
		ContextID: string(m.ContextID), TaskID: string(m.TaskID), ReferenceTaskIDs: refs,
	}
}

func decodeMessage(w wireMessage) (task.Message, error) {
	parts, err := decodeParts(w.Parts)
	if err != nil {
		return task.Message{}, err
	}
	refs := make([]task.ID, len(w.ReferenceTaskIDs))
	for i, r := range w.ReferenceTaskIDs {
		refs[i] = task.ID(r)
	}
	return task.Message{
		MessageID: w.MessageID, Role: model.ConversationRole(w.Role), Parts: parts,
		ContextID: task.ContextID(w.ContextID), TaskID: task.ID(w.TaskID), ReferenceTaskIDs: refs,
	}, nil
}

// wireArtifact is the wire shape of task.Artifact.
type wireArtifact struct {
	ArtifactID string     `json:"artifact_id"`
	Name       string     `json:"name,omitempty"`
	Parts      []wirePart `json:"parts"`
	LastChunk  bool       `json:"last_chunk"`
}

func encodeArtifact(a *task.Artifact) wireArtifact {
	return wireArtifact{ArtifactID: a.ID, Name: a.Name, Parts: encodeParts(a.Parts), LastChunk: a.LastChunk}
}

// wireTask is the wire shape of task.Task.
type wireTask struct {
	ID        string         `json:"id"`
	ContextID string         `json:"context_id"`
	Status    string         `json:"status"`
	Artifacts []wireArtifact `json:"artifacts"`
	History   []wireMessage  `json:"history,omitempty"`
}

func encodeTask(t *task.Task, historyLength int) wireTask {
	artifacts := make([]wireArtifact, len(t.Artifacts))
	for i, a := range t.Artifacts {
		artifacts[i] = encodeArtifact(a)
	}
	history := t.History
	if historyLength >= 0 && historyLength < len(history) {
		history = history[len(history)-historyLength:]
	}
	wireHistory := make([]wireMessage, len(history))
	for i, m := range history {
		wireHistory[i] = encodeMessage(m)
	}
	return wireTask{
		ID: string(t.ID), ContextID: string(t.ContextID), Status: string(t.Status.State),
		Artifacts: artifacts, History: wireHistory,
	}
}

func encodePushConfig(cfg push.Config) map[string]any {
	return map[string]any{
		"task_id": cfg.TaskID, "url": cfg.URL, "headers": cfg.Headers,
	}
}
