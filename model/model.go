// Package model defines the provider-agnostic message and part vocabulary
// shared by the executor, providers, and specialist pool. Messages are
// modeled as typed parts (text, image, file, structured data, tool
// use/result) plus a conversation role, independent of any one LLM
// provider's wire format.
package model

import "encoding/json"

// ConversationRole is the role of a message within a conversation turn.
type ConversationRole string

const (
	// RoleUser identifies a message originating from the end user.
	RoleUser ConversationRole = "user"
	// RoleAgent identifies a message produced by the executing agent.
	RoleAgent ConversationRole = "agent"
	// RoleSystem identifies a system-authored message (errors, reminders).
	RoleSystem ConversationRole = "system"
)

type (
	// Part is a marker interface implemented by every message content part.
	// Concrete implementations capture user-visible text, attached media,
	// structured data, and tool call/result content in a strongly typed
	// form so callers never need to type-switch on raw JSON.
	Part interface {
		isPart()
	}

	// TextPart is a plain text content block.
	TextPart struct {
		Text string
	}

	// ImagePart carries image bytes attached to a message.
	ImagePart struct {
		// MediaType is the IANA media type of Data (for example "image/png").
		MediaType string
		Data      []byte
	}

	// FilePart carries a file attached to a message, either inline or by
	// reference. Exactly one of Bytes or URI should be set.
	FilePart struct {
		Filename  string
		MediaType string
		Bytes     []byte
		URI       string
	}

	// DataPart carries an arbitrary structured JSON payload.
	DataPart struct {
		JSON json.RawMessage
	}

	// ToolUsePart represents a tool invocation requested by the model.
	ToolUsePart struct {
		ToolCallID string
		Name       string
		Input      json.RawMessage
	}

	// ToolResultPart represents the result of a previously requested tool
	// invocation, injected back into the conversation as a new message.
	ToolResultPart struct {
		ToolCallID string
		Content    []Part
		IsError    bool
	}
)

func (TextPart) isPart()       {}
func (ImagePart) isPart()      {}
func (FilePart) isPart()       {}
func (DataPart) isPart()       {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// Message is one turn in a conversation, carrying an ordered list of parts.
type Message struct {
	// ID is an opaque, process-unique identifier for this message.
	ID   string
	Role ConversationRole
	Parts []Part
}

// Text concatenates the text of every TextPart in the message, in order.
// Non-text parts are ignored. It is a convenience used by callers (the
// Intent Router, logging) that only care about the textual content.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// ToolSpec describes a single callable tool exposed to a Provider.
type ToolSpec struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema document describing the tool's input
	// shape, passed through to the provider unmodified.
	InputSchema json.RawMessage
}
