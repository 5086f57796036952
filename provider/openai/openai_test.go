package openai_test

import (
	"context"
	"testing"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider/openai"
)

type stubChat struct {
	resp *oai.ChatCompletion
	err  error
}

func (s stubChat) New(context.Context, oai.ChatCompletionNewParams, ...option.RequestOption) (*oai.ChatCompletion, error) {
	return s.resp, s.err
}

func TestNew_RequiresClientAndModel(t *testing.T) {
	_, err := openai.New(nil, "gpt-4", 1024)
	require.Error(t, err)

	_, err = openai.New(stubChat{}, "", 1024)
	require.Error(t, err)
}

func TestComplete_RequiresMessages(t *testing.T) {
	c, err := openai.New(stubChat{}, "gpt-4o", 1024)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", nil, nil)
	require.Error(t, err)
}

func TestComplete_TranslatesTextResponse(t *testing.T) {
	resp := &oai.ChatCompletion{
		Choices: []oai.ChatCompletionChoice{
			{
				FinishReason: "stop",
				Message:      oai.ChatCompletionMessage{Content: "hi there"},
			},
		},
		Usage: oai.CompletionUsage{PromptTokens: 8, CompletionTokens: 4, TotalTokens: 12},
	}
	c, err := openai.New(stubChat{resp: resp}, "gpt-4o", 1024)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "be helpful", []model.Message{
		{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "hi there", out.Messages[0].Text())
	require.Equal(t, 12, out.Usage.TotalTokens)
}
