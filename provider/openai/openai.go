// Package openai adapts provider.Provider to the OpenAI Chat Completions
// API via github.com/openai/openai-go. Grounded on the teacher's
// features/model/openai/client.go (same adapter shape: translate
// model.Message into a ChatCompletion request, translate the response back),
// ported from the teacher's go-openai dependency to the official SDK the
// domain-stack expansion wires in, with tool-call and error handling
// generalized to this module's model.Part/model.ProviderError vocabulary.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
)

// ChatClient is the subset of the openai-go client used by this adapter.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements provider.Provider via OpenAI Chat Completions.
type Client struct {
	chat      ChatClient
	model     string
	maxTokens int
}

// New builds an OpenAI-backed Provider.
func New(chat ChatClient, defaultModel string, maxTokens int) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	modelID := strings.TrimSpace(defaultModel)
	if modelID == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, model: modelID, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a client using the default openai-go HTTP
// client, reading OPENAI_API_KEY-style defaults from the environment.
func NewFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, defaultModel, maxTokens)
}

// Name identifies this provider in ProviderError and logs.
func (c *Client) Name() string { return "openai" }

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, system string, messages []model.Message, tools []model.ToolSpec) (provider.Response, error) {
	if len(messages) == 0 {
		return provider.Response{}, model.NewProviderError(c.Name(), "complete", model.ErrOther, "messages are required", nil)
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: encodeMessages(system, messages),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(c.maxTokens))
	}
	if len(tools) > 0 {
		encoded, err := encodeTools(tools)
		if err != nil {
			return provider.Response{}, model.NewProviderError(c.Name(), "complete", model.ErrOther, err.Error(), err)
		}
		params.Tools = encoded
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return provider.Response{}, classifyError(c.Name(), err)
	}
	return translateResponse(resp), nil
}

func encodeMessages(system string, messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range messages {
		text := m.Text()
		switch m.Role {
		case model.RoleAgent:
			out = append(out, toolCallsOrAssistant(m, text)...)
		case model.RoleUser, model.RoleSystem:
			if calls := toolResultMessages(m); len(calls) > 0 {
				out = append(out, calls...)
				continue
			}
			if text != "" {
				out = append(out, openai.UserMessage(text))
			}
		}
	}
	return out
}

func toolCallsOrAssistant(m model.Message, text string) []openai.ChatCompletionMessageParamUnion {
	var toolUses []model.ToolUsePart
	for _, p := range m.Parts {
		if tu, ok := p.(model.ToolUsePart); ok {
			toolUses = append(toolUses, tu)
		}
	}
	if len(toolUses) == 0 {
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text)}
	}
	asst := openai.ChatCompletionAssistantMessageParam{}
	if text != "" {
		asst.Content.OfString = param.NewOpt(text)
	}
	for _, tu := range toolUses {
		asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tu.ToolCallID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tu.Name,
				Arguments: string(tu.Input),
			},
		})
	}
	return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &asst}}
}

func toolResultMessages(m model.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, p := range m.Parts {
		tr, ok := p.(model.ToolResultPart)
		if !ok {
			continue
		}
		out = append(out, openai.ToolMessage(toolResultText(tr), tr.ToolCallID))
	}
	return out
}

func toolResultText(v model.ToolResultPart) string {
	var out string
	for _, p := range v.Content {
		if t, ok := p.(model.TextPart); ok {
			out += t.Text
		}
	}
	return out
}

func encodeTools(specs []model.ToolSpec) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		var schema map[string]any
		if len(s.InputSchema) > 0 {
			if err := json.Unmarshal(s.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("openai: tool %q schema: %w", s.Name, err)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        s.Name,
				Description: param.NewOpt(s.Description),
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

func translateResponse(resp *openai.ChatCompletion) provider.Response {
	out := provider.Response{}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.StopReason = string(choice.FinishReason)
	if choice.Message.Content != "" {
		out.Messages = append(out.Messages, model.Message{
			Role:  model.RoleAgent,
			Parts: []model.Part{model.TextPart{Text: choice.Message.Content}},
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolUsePart{
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Input:      json.RawMessage(tc.Function.Arguments),
		})
	}
	out.Usage = provider.TokenUsage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	return out
}

func classifyError(providerName string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.NewProviderError(providerName, "complete", kindForStatus(apiErr.StatusCode), apiErr.Error(), err)
	}
	return model.NewProviderError(providerName, "complete", model.ErrOther, err.Error(), err)
}

func kindForStatus(status int) model.ProviderErrorKind {
	switch {
	case status == 429:
		return model.ErrRateLimited
	case status == 413:
		return model.ErrContextLengthExceeded
	case status >= 500:
		return model.ErrServer
	case status == 408:
		return model.ErrTimeout
	default:
		return model.ErrOther
	}
}
