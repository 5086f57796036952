package bedrock_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/provider/bedrock"
)

type stubRuntime struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (s stubRuntime) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return s.out, s.err
}

func TestNew_RequiresRuntimeAndModel(t *testing.T) {
	_, err := bedrock.New(nil, "anthropic.claude", 1024, 0)
	require.Error(t, err)

	_, err = bedrock.New(stubRuntime{}, "", 1024, 0)
	require.Error(t, err)
}

func TestComplete_TranslatesTextResponse(t *testing.T) {
	out := &bedrockruntime.ConverseOutput{
		StopReason: brtypes.StopReasonEndTurn,
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "hello from bedrock"},
				},
			},
		},
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(6),
			OutputTokens: aws.Int32(3),
			TotalTokens:  aws.Int32(9),
		},
	}
	c, err := bedrock.New(stubRuntime{out: out}, "anthropic.claude-3-5-sonnet", 1024, 0)
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), "be helpful", []model.Message{
		{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	require.Equal(t, "hello from bedrock", resp.Messages[0].Text())
	require.Equal(t, 9, resp.Usage.TotalTokens)
}
