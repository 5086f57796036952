// Package config loads process configuration for the workflowctl CLI and
// any long-running host process that wires a Workflow Engine (C9) and
// Specialist Pool (C8): which engine backend to run (in-memory or
// Temporal), the specialist command roster, and pool concurrency limits.
// Grounded on nevindra-oasis's internal/config package: defaults, then an
// optional TOML file, then environment variable overrides, in that order.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the process-wide configuration for a workflowctl host.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Specialist SpecialistConfig `toml:"specialist"`
}

// EngineConfig selects and configures the Workflow Engine backend.
type EngineConfig struct {
	// Backend is "inmem" (default) or "temporal".
	Backend string `toml:"backend"`
	// TemporalHostPort is the Temporal frontend address, used when
	// Backend is "temporal".
	TemporalHostPort string `toml:"temporal_host_port"`
	// TemporalNamespace is the Temporal namespace to run workflows in.
	TemporalNamespace string `toml:"temporal_namespace"`
	// TaskQueue is the Temporal task queue this process's worker polls.
	TaskQueue string `toml:"task_queue"`
	// CatalogFile optionally points to a YAML workflow template catalog
	// (workflow.LoadCatalogFile); empty means use workflow.DefaultTemplates.
	CatalogFile string `toml:"catalog_file"`
}

// AgentCommand configures one specialist.Agent backed by a shell command.
type AgentCommand struct {
	Role      string   `toml:"role"`
	Name      string   `toml:"name"`
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	EstimateSeconds int `toml:"estimate_seconds"`
}

// SpecialistConfig configures the Specialist Pool's agent roster and
// concurrency budget.
type SpecialistConfig struct {
	MaxConcurrentTasks int            `toml:"max_concurrent_tasks"`
	Agents             []AgentCommand `toml:"agents"`
}

// Default returns a Config with every field set to a usable default: the
// in-memory engine backend and one CommandAgent per specialist role, each
// running the no-op `true` command, so `workflowctl` runs out of the box without a config file.
func Default() Config {
	return Config{
		Engine: EngineConfig{Backend: "inmem", TaskQueue: "agentfleet-workflows"},
		Specialist: SpecialistConfig{
			MaxConcurrentTasks: 4,
			Agents: []AgentCommand{
				{Role: "code", Name: "code-agent", Command: "true", EstimateSeconds: 60},
				{Role: "test", Name: "test-agent", Command: "true", EstimateSeconds: 60},
				{Role: "deploy", Name: "deploy-agent", Command: "true", EstimateSeconds: 30},
				{Role: "docs", Name: "docs-agent", Command: "true", EstimateSeconds: 30},
				{Role: "security", Name: "security-agent", Command: "true", EstimateSeconds: 45},
			},
		},
	}
}

// Load reads configuration: defaults -> TOML file at path (if it exists)
// -> environment variable overrides (env wins). path may be empty, in
// which case only defaults and environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("AGENTFLEET_ENGINE_BACKEND"); v != "" {
		cfg.Engine.Backend = v
	}
	if v := os.Getenv("AGENTFLEET_TEMPORAL_HOST_PORT"); v != "" {
		cfg.Engine.TemporalHostPort = v
	}
	if v := os.Getenv("AGENTFLEET_TEMPORAL_NAMESPACE"); v != "" {
		cfg.Engine.TemporalNamespace = v
	}
	if v := os.Getenv("AGENTFLEET_TASK_QUEUE"); v != "" {
		cfg.Engine.TaskQueue = v
	}
	if v := os.Getenv("AGENTFLEET_CATALOG_FILE"); v != "" {
		cfg.Engine.CatalogFile = v
	}

	return cfg, nil
}
