package handoff_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/handoff"
	"github.com/agentfleet/orchestrator/model"
)

func stubBuilder() handoff.MemoBuilderFunc {
	return func(_ context.Context, from, to string, reason handoff.Reason) (handoff.HandoffMemo, error) {
		return handoff.HandoffMemo{
			ProjectState:     "state-snapshot",
			ExecutionContext: map[string]string{"task": "t1"},
			NextActions:      []string{"resume tool loop"},
		}, nil
	}
}

func TestHandoff_NotFallbackWorthyPassesThrough(t *testing.T) {
	r := handoff.NewRouter([]string{"anthropic", "openai"}, handoff.FallbackPolicy{}, stubBuilder())
	r.SetActive("anthropic")

	perr := model.NewProviderError("anthropic", "complete", model.ErrContextLengthExceeded, "too long", nil)
	_, err := r.Handoff(context.Background(), perr)

	var got *model.ProviderError
	require.ErrorAs(t, err, &got)
	require.Equal(t, model.ErrContextLengthExceeded, got.Kind)
}

func TestHandoff_SwitchesToNextHealthyProvider(t *testing.T) {
	r := handoff.NewRouter([]string{"anthropic", "openai", "bedrock"}, handoff.FallbackPolicy{}, stubBuilder())
	r.SetActive("anthropic")

	perr := model.NewProviderError("anthropic", "complete", model.ErrRateLimited, "429", nil)
	memo, err := r.Handoff(context.Background(), perr)
	require.NoError(t, err)
	require.Equal(t, "anthropic", memo.From)
	require.Equal(t, "openai", memo.To)
	require.Equal(t, handoff.AutomaticFallback, memo.Reason)
	require.NotEmpty(t, memo.IntegrityHash)
	require.True(t, memo.VerifyIntegrity())
	require.Equal(t, "openai", r.Active())
}

func TestHandoff_SkipsIneligibleProviders(t *testing.T) {
	policy := handoff.FallbackPolicy{DenyList: []string{"openai"}}
	r := handoff.NewRouter([]string{"anthropic", "openai", "bedrock"}, policy, stubBuilder())
	r.SetActive("anthropic")

	perr := model.NewProviderError("anthropic", "complete", model.ErrServer, "500", nil)
	memo, err := r.Handoff(context.Background(), perr)
	require.NoError(t, err)
	require.Equal(t, "bedrock", memo.To)
}

func TestHandoff_AllProvidersFailedWhenChainExhausted(t *testing.T) {
	r := handoff.NewRouter([]string{"anthropic"}, handoff.FallbackPolicy{}, stubBuilder())
	r.SetActive("anthropic")

	perr := model.NewProviderError("anthropic", "complete", model.ErrTimeout, "deadline", nil)
	_, err := r.Handoff(context.Background(), perr)
	require.ErrorIs(t, err, handoff.ErrAllProvidersFailed)
}

func TestHandoff_UnhealthyProviderSkippedUntilRecovered(t *testing.T) {
	r := handoff.NewRouter([]string{"anthropic", "openai"}, handoff.FallbackPolicy{}, stubBuilder())
	r.SetActive("anthropic")

	failErr := errors.New("connection refused")
	r.ReportFailure("openai", failErr)
	r.ReportFailure("openai", failErr)
	r.ReportFailure("openai", failErr)

	perr := model.NewProviderError("anthropic", "complete", model.ErrEndpointUnreachable, "refused", nil)
	_, err := r.Handoff(context.Background(), perr)
	require.ErrorIs(t, err, handoff.ErrAllProvidersFailed)

	r.ReportSuccess("openai")
	memo, err := r.Handoff(context.Background(), perr)
	require.NoError(t, err)
	require.Equal(t, "openai", memo.To)
}

func TestUserSwitch_ForceBypassesPolicy(t *testing.T) {
	policy := handoff.FallbackPolicy{DenyList: []string{"openai"}}
	r := handoff.NewRouter([]string{"anthropic", "openai"}, policy, stubBuilder())
	r.SetActive("anthropic")

	_, err := r.UserSwitch(context.Background(), "anthropic", "openai", false)
	require.Error(t, err)

	memo, err := r.UserSwitch(context.Background(), "anthropic", "openai", true)
	require.NoError(t, err)
	require.Equal(t, handoff.UserInitiated, memo.Reason)
	require.Equal(t, "openai", r.Active())
}

func TestHandoffMemo_FinalizeIsIdempotent(t *testing.T) {
	memo := handoff.HandoffMemo{From: "anthropic", To: "openai", Reason: handoff.UserInitiated}
	memo.Finalize()
	hash := memo.IntegrityHash
	memo.Finalize()
	require.Equal(t, hash, memo.IntegrityHash)
	require.True(t, memo.VerifyIntegrity())
}
