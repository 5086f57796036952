package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "inmem", cfg.Engine.Backend)
	require.Equal(t, "agentfleet-workflows", cfg.Engine.TaskQueue)
	require.Len(t, cfg.Specialist.Agents, 5)
	require.Equal(t, 4, cfg.Specialist.MaxConcurrentTasks)
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflowctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
backend = "temporal"
task_queue = "custom-queue"

[specialist]
max_concurrent_tasks = 8

[[specialist.agents]]
role = "code"
name = "my-code-agent"
command = "echo"
args = ["ok"]
estimate_seconds = 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "temporal", cfg.Engine.Backend)
	require.Equal(t, "custom-queue", cfg.Engine.TaskQueue)
	require.Equal(t, 8, cfg.Specialist.MaxConcurrentTasks)
	require.Len(t, cfg.Specialist.Agents, 1)
	require.Equal(t, "my-code-agent", cfg.Specialist.Agents[0].Name)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AGENTFLEET_ENGINE_BACKEND", "temporal")
	t.Setenv("AGENTFLEET_TASK_QUEUE", "env-queue")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "temporal", cfg.Engine.Backend)
	require.Equal(t, "env-queue", cfg.Engine.TaskQueue)
}
