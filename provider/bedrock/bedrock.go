// Package bedrock adapts provider.Provider to the AWS Bedrock Converse API.
// Grounded on the teacher's features/model/bedrock/client.go: split system
// vs. conversational messages, encode tool schemas into Bedrock's
// ToolConfiguration, translate Converse responses (text + tool_use blocks)
// back into this module's model vocabulary. Narrowed to non-streaming
// Converse only and to this module's simpler model.Message/model.Part
// shapes (no ledger-backed transcript replay, no thinking-budget
// negotiation, no model-class routing).
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider"
)

// RuntimeClient is the subset of the AWS Bedrock runtime client used by this
// adapter, satisfied by *bedrockruntime.Client in production.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements provider.Provider on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// New builds a Bedrock-backed Provider. defaultModel is a Bedrock model
// identifier (for example "anthropic.claude-3-5-sonnet-20241022-v2:0").
func New(runtime RuntimeClient, defaultModel string, maxTokens int, temperature float32) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{runtime: runtime, defaultModel: defaultModel, maxTokens: maxTokens, temperature: temperature}, nil
}

// Name identifies this provider in ProviderError and logs.
func (c *Client) Name() string { return "bedrock" }

// Complete issues a Converse request and translates the response.
func (c *Client) Complete(ctx context.Context, system string, messages []model.Message, tools []model.ToolSpec) (provider.Response, error) {
	msgs, err := encodeMessages(messages)
	if err != nil {
		return provider.Response{}, model.NewProviderError(c.Name(), "complete", model.ErrOther, err.Error(), err)
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.defaultModel),
		Messages: msgs,
	}
	if system != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}
	inferenceConfig := &brtypes.InferenceConfiguration{}
	hasInference := false
	if c.maxTokens > 0 {
		mt := int32(c.maxTokens)
		inferenceConfig.MaxTokens = &mt
		hasInference = true
	}
	if c.temperature > 0 {
		temp := c.temperature
		inferenceConfig.Temperature = &temp
		hasInference = true
	}
	if hasInference {
		input.InferenceConfig = inferenceConfig
	}
	if len(tools) > 0 {
		toolConfig, err := encodeTools(tools)
		if err != nil {
			return provider.Response{}, model.NewProviderError(c.Name(), "complete", model.ErrOther, err.Error(), err)
		}
		input.ToolConfig = toolConfig
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return provider.Response{}, classifyError(c.Name(), err)
	}
	return translateResponse(output)
}

func encodeMessages(messages []model.Message) ([]brtypes.Message, error) {
	out := make([]brtypes.Message, 0, len(messages))
	for _, m := range messages {
		var blocks []brtypes.ContentBlock
		for _, p := range m.Parts {
			switch v := p.(type) {
			case model.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case model.ToolUsePart:
				var input document.Interface
				if len(v.Input) > 0 {
					var decoded map[string]any
					if err := json.Unmarshal(v.Input, &decoded); err != nil {
						return nil, fmt.Errorf("bedrock: tool_use %q input: %w", v.Name, err)
					}
					input = document.NewLazyDocument(decoded)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(v.ToolCallID),
					Name:      aws.String(v.Name),
					Input:     input,
				}})
			case model.ToolResultPart:
				status := brtypes.ToolResultStatusSuccess
				if v.IsError {
					status = brtypes.ToolResultStatusError
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
					ToolUseId: aws.String(v.ToolCallID),
					Status:    status,
					Content: []brtypes.ToolResultContentBlock{
						&brtypes.ToolResultContentBlockMemberText{Value: toolResultText(v)},
					},
				}})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role {
		case model.RoleAgent:
			role = brtypes.ConversationRoleAssistant
		case model.RoleUser, model.RoleSystem:
			role = brtypes.ConversationRoleUser
		default:
			return nil, fmt.Errorf("bedrock: unsupported role %q", m.Role)
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	if len(out) == 0 {
		return nil, errors.New("bedrock: no encodable message content")
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

func encodeTools(specs []model.ToolSpec) (*brtypes.ToolConfiguration, error) {
	tools := make([]brtypes.Tool, 0, len(specs))
	for _, s := range specs {
		var schemaDoc map[string]any
		if len(s.InputSchema) > 0 {
			if err := json.Unmarshal(s.InputSchema, &schemaDoc); err != nil {
				return nil, fmt.Errorf("bedrock: tool %q schema: %w", s.Name, err)
			}
		}
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(s.Name),
			Description: aws.String(s.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schemaDoc)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}, nil
}

func translateResponse(output *bedrockruntime.ConverseOutput) (provider.Response, error) {
	if output == nil || output.Output == nil {
		return provider.Response{}, errors.New("bedrock: empty converse output")
	}
	msgOutput, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return provider.Response{}, errors.New("bedrock: unsupported converse output variant")
	}
	resp := provider.Response{StopReason: string(output.StopReason)}
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Messages = append(resp.Messages, model.Message{
				Role:  model.RoleAgent,
				Parts: []model.Part{model.TextPart{Text: b.Value}},
			})
		case *brtypes.ContentBlockMemberToolUse:
			var input json.RawMessage
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err == nil {
					input = raw
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, model.ToolUsePart{
				ToolCallID: aws.ToString(b.Value.ToolUseId),
				Name:       aws.ToString(b.Value.Name),
				Input:      input,
			})
		}
	}
	if output.Usage != nil {
		u := output.Usage
		resp.Usage = provider.TokenUsage{
			InputTokens:  int(aws.ToInt32(u.InputTokens)),
			OutputTokens: int(aws.ToInt32(u.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(u.TotalTokens)),
		}
	}
	return resp, nil
}

// classifyError maps Converse failures into model.ProviderError, treating
// ThrottlingException/TooManyRequestsException and HTTP 429 as rate limits
// per the teacher's isRateLimited helper.
func classifyError(providerName string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return model.NewProviderError(providerName, "complete", model.ErrRateLimited, apiErr.ErrorMessage(), err)
		case "ModelTimeoutException":
			return model.NewProviderError(providerName, "complete", model.ErrTimeout, apiErr.ErrorMessage(), err)
		case "ValidationException":
			return model.NewProviderError(providerName, "complete", model.ErrContextLengthExceeded, apiErr.ErrorMessage(), err)
		case "ServiceUnavailableException", "InternalServerException":
			return model.NewProviderError(providerName, "complete", model.ErrServer, apiErr.ErrorMessage(), err)
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.HTTPStatusCode() == 429:
			return model.NewProviderError(providerName, "complete", model.ErrRateLimited, err.Error(), err)
		case respErr.HTTPStatusCode() >= 500:
			return model.NewProviderError(providerName, "complete", model.ErrServer, err.Error(), err)
		}
	}
	return model.NewProviderError(providerName, "complete", model.ErrOther, err.Error(), err)
}
