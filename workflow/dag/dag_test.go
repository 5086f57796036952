package dag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/workflow/dag"
)

func TestBuild_LinearChain(t *testing.T) {
	g, err := dag.Build([]dag.Node{
		{Name: "design"},
		{Name: "implement", Dependencies: []string{"design"}},
		{Name: "test", Dependencies: []string{"implement"}},
	})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"design"}, {"implement"}, {"test"}}, g.Layers())
}

func TestBuild_ParallelLayer(t *testing.T) {
	g, err := dag.Build([]dag.Node{
		{Name: "design"},
		{Name: "frontend", Dependencies: []string{"design"}},
		{Name: "backend", Dependencies: []string{"design"}},
		{Name: "integrate", Dependencies: []string{"frontend", "backend"}},
	})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"design"}, {"backend", "frontend"}, {"integrate"}}, g.Layers())
	require.ElementsMatch(t, []string{"frontend", "backend"}, g.Dependents("design"))
}

func TestBuild_RejectsCycle(t *testing.T) {
	_, err := dag.Build([]dag.Node{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b", Dependencies: []string{"a"}},
	})
	require.ErrorIs(t, err, dag.ErrCycle)
}

func TestBuild_RejectsUnknownDependency(t *testing.T) {
	_, err := dag.Build([]dag.Node{
		{Name: "a", Dependencies: []string{"ghost"}},
	})
	require.Error(t, err)
}

func TestBuild_RejectsDuplicateName(t *testing.T) {
	_, err := dag.Build([]dag.Node{
		{Name: "a"},
		{Name: "a"},
	})
	require.Error(t, err)
}
