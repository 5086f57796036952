package anthropic_test

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider/anthropic"
)

type stubMessages struct {
	resp *sdk.Message
	err  error
}

func (s stubMessages) New(context.Context, sdk.MessageNewParams, ...option.RequestOption) (*sdk.Message, error) {
	return s.resp, s.err
}

func TestNew_RequiresClientAndModel(t *testing.T) {
	_, err := anthropic.New(nil, "claude", 1024, 0)
	require.Error(t, err)

	_, err = anthropic.New(stubMessages{}, "", 1024, 0)
	require.Error(t, err)
}

func TestComplete_RequiresMessages(t *testing.T) {
	c, err := anthropic.New(stubMessages{}, "claude-sonnet", 1024, 0)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", nil, nil)
	require.Error(t, err)
}

func TestComplete_TranslatesTextResponse(t *testing.T) {
	resp := &sdk.Message{
		StopReason: sdk.StopReasonEndTurn,
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "hello there"},
		},
		Usage: sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}
	c, err := anthropic.New(stubMessages{resp: resp}, "claude-sonnet", 1024, 0)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "be helpful", []model.Message{
		{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "hello there", out.Messages[0].Text())
	require.Equal(t, 15, out.Usage.TotalTokens)
}
