// Package anthropic adapts provider.Provider to the Anthropic Claude
// Messages API. Grounded on the teacher's features/model/anthropic/client.go,
// narrowed to this module's simpler model.Message/model.Part vocabulary (no
// ModelClass routing, no streaming, no thinking-budget negotiation — those
// are teacher features this spec's Provider port does not expose) and with
// error classification rerouted through model.ProviderError.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
)

// MessagesClient is the subset of the Anthropic SDK client this adapter
// uses, satisfied by *sdk.MessageService in production and a stub in
// tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements provider.Provider on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds an Anthropic-backed Provider. defaultModel and maxTokens are
// required; temperature of 0 uses the API default.
func New(msg MessagesClient, defaultModel string, maxTokens int, temperature float64) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	if maxTokens <= 0 {
		return nil, errors.New("anthropic: max tokens must be positive")
	}
	return &Client{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens, temperature: temperature}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP
// client, reading credentials from the environment via the SDK's option
// defaults.
func NewFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, defaultModel, maxTokens, 0)
}

// Name identifies this provider in ProviderError and logs.
func (c *Client) Name() string { return "anthropic" }

// Complete issues a non-streaming Messages.New request.
func (c *Client) Complete(ctx context.Context, system string, messages []model.Message, tools []model.ToolSpec) (provider.Response, error) {
	params, err := c.buildParams(system, messages, tools)
	if err != nil {
		return provider.Response{}, model.NewProviderError(c.Name(), "complete", model.ErrOther, err.Error(), err)
	}
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return provider.Response{}, classifyError(c.Name(), err)
	}
	return translateResponse(msg)
}

func (c *Client) buildParams(system string, messages []model.Message, tools []model.ToolSpec) (sdk.MessageNewParams, error) {
	if len(messages) == 0 {
		return sdk.MessageNewParams{}, errors.New("at least one message is required")
	}
	msgs, err := encodeMessages(messages)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.defaultModel),
		MaxTokens: int64(c.maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if c.temperature > 0 {
		params.Temperature = sdk.Float(c.temperature)
	}
	if len(tools) > 0 {
		encoded, err := encodeTools(tools)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		params.Tools = encoded
	}
	return params, nil
}

func encodeMessages(messages []model.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch v := p.(type) {
			case model.TextPart:
				if v.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(v.Text))
				}
			case model.ToolUsePart:
				blocks = append(blocks, sdk.NewToolUseBlock(v.ToolCallID, v.Input, v.Name))
			case model.ToolResultPart:
				blocks = append(blocks, sdk.NewToolResultBlock(v.ToolCallID, toolResultText(v), v.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case model.RoleUser, model.RoleSystem:
			out = append(out, sdk.NewUserMessage(blocks...))
		case model.RoleAgent:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("anthropic: no encodable message content")
	}
	return out, nil
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

func encodeTools(specs []model.ToolSpec) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		schema, err := decodeSchema(s.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", s.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, s.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(s.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message) (provider.Response, error) {
	if msg == nil {
		return provider.Response{}, errors.New("anthropic: nil response message")
	}
	resp := provider.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			resp.Messages = append(resp.Messages, model.Message{
				Role:  model.RoleAgent,
				Parts: []model.Part{model.TextPart{Text: block.Text}},
			})
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, model.ToolUsePart{
				ToolCallID: block.ID,
				Name:       block.Name,
				Input:      block.Input,
			})
		}
	}
	u := msg.Usage
	resp.Usage = provider.TokenUsage{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
		TotalTokens:  int(u.InputTokens + u.OutputTokens),
	}
	return resp, nil
}

// classifyError maps an Anthropic SDK error into a model.ProviderError so
// C4/C13 can make retry/fallback decisions without depending on this
// package.
func classifyError(providerName string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		kind := kindForStatus(apiErr.StatusCode)
		return model.NewProviderError(providerName, "complete", kind, apiErr.Error(), err)
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
