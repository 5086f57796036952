package router_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/router"
)

func devOpsSlots() []router.Slot {
	return []router.Slot{
		{
			Name: "Developer Agent", Description: "writes and maintains application code",
			DefaultModeSlug: "code", Enabled: true,
			Modes: []router.Mode{
				{Slug: "code", Name: "code", Description: "implement backend and frontend features", WhenToUse: "implement a new feature or endpoint, write server code, fix a bug in application logic"},
			},
		},
		{
			Name: "Security Agent", Description: "analyzes vulnerabilities and threat models",
			DefaultModeSlug: "audit", Enabled: true,
			Modes: []router.Mode{
				{Slug: "audit", Name: "audit", Description: "review code and infrastructure for security issues", WhenToUse: "analyze security vulnerabilities, create a threat model, review authentication and authorization"},
			},
		},
	}
}

func TestRoute_ImplementationRequest(t *testing.T) {
	d := router.Route("implement a new backend API endpoint and write server code", devOpsSlots())
	require.Equal(t, "Developer Agent", d.AgentName)
}

func TestRoute_SecurityRequest(t *testing.T) {
	d := router.Route("analyze security vulnerabilities and create a threat model for the auth system", devOpsSlots())
	require.Equal(t, "Security Agent", d.AgentName)
}

func TestRoute_NoEnabledSlots_ReturnsHardcodedFallback(t *testing.T) {
	d := router.Route("anything", nil)
	require.Equal(t, "Goose Agent", d.AgentName)
	require.Equal(t, "ask", d.ModeSlug)
	require.InDelta(t, 0.1, d.Confidence, 1e-9)
}

func TestRoute_BelowThreshold_UsesFirstEnabledDefaultMode(t *testing.T) {
	slots := []router.Slot{
		{Name: "Generalist Agent", DefaultModeSlug: "chat", Enabled: true, Modes: []router.Mode{
			{Slug: "chat", Name: "chat", Description: "general conversation", WhenToUse: "casual chat"},
		}},
	}
	d := router.Route("xyz unrelated gibberish zzqq", slots)
	require.Equal(t, "Generalist Agent", d.AgentName)
	require.Equal(t, "chat", d.ModeSlug)
	require.InDelta(t, 0.5, d.Confidence, 1e-9)
}

// TestRoute_IsPureFunction asserts P5: route is a pure function of
// (message, slots) — calling it twice with the same inputs produces the
// same decision.
func TestRoute_IsPureFunction(t *testing.T) {
	props := gopter.NewProperties(nil)

	props.Property("same inputs yield same decision", prop.ForAll(
		func(msg string) bool {
			slots := devOpsSlots()
			a := router.Route(msg, slots)
			b := router.Route(msg, slots)
			return a == b
		},
		gen.AnyString(),
	))

	props.TestingRun(t)
}
