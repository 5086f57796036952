// Package provider defines the narrow port the Agent Executor (C4) uses to
// reach a large-language-model backend, and the concrete response/usage
// shapes every adapter (provider/anthropic, provider/openai,
// provider/bedrock) translates into. Grounded on the teacher's
// runtime/agent/model.Client interface, generalized to this module's
// model.Message/model.Part vocabulary and narrowed to the single
// Complete operation spec.md §4.4 requires (no streaming, no model-class
// routing — those are teacher features this spec does not call for).
package provider

import (
	"context"

	"github.com/agentfleet/orchestrator/model"
)

// TokenUsage reports token accounting for one Complete call, when the
// backend provides it.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a provider's answer to one Complete call: zero or more
// content messages and zero or more tool calls requested by the model.
type Response struct {
	Messages   []model.Message
	ToolCalls  []model.ToolUsePart
	Usage      TokenUsage
	StopReason string
}

// Provider is the port implemented by every concrete LLM backend adapter.
// system is the system prompt, messages is the full conversation so far
// (including prior tool results appended as ToolResultPart messages), and
// tools is the set of tools currently available to the model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system string, messages []model.Message, tools []model.ToolSpec) (Response, error)
}
