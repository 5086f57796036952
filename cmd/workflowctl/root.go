// Command workflowctl is the operator-facing CLI over the Workflow Engine
// (C9): execute a template, list templates, inspect one, poll an
// execution's status, and list past executions (spec.md §6 "workflowctl").
//
// Grounded on the teacher pack's cobra conventions: C360Studio-semspec's
// cmd/semspec/main.go for the root command plus signal.NotifyContext
// graceful-shutdown pattern, and vanducng-goclaw's cmd/root.go for the
// subcommand-per-file layout with a package-level rootCmd and an init()
// that wires AddCommand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentfleet/orchestrator/config"
	"github.com/agentfleet/orchestrator/specialist"
	"github.com/agentfleet/orchestrator/specialist/agents"
	"github.com/agentfleet/orchestrator/workflow"
	"github.com/agentfleet/orchestrator/workflow/engine/inmem"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "workflowctl",
	Short: "Drive the agentfleet Workflow Engine from the command line",
	Long: "workflowctl executes workflow templates against the Specialist Pool,\n" +
		"inspects the template catalog, and reports on running and past executions.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (optional)")
	rootCmd.AddCommand(executeCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(executionsCmd())
}

// Execute runs the root command, exiting with the code conventions of
// spec.md §6: 0 success, 1 user error, 2 internal error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if code, ok := err.(exitCoder); ok {
			os.Exit(code.ExitCode())
		}
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// exitCoder lets a command return a specific process exit code (2 for
// internal/engine errors, distinct from the default 1 for user errors).
type exitCoder interface {
	error
	ExitCode() int
}

type internalError struct{ err error }

func (e internalError) Error() string { return e.err.Error() }
func (e internalError) ExitCode() int { return 2 }
func (e internalError) Unwrap() error { return e.err }

func wrapInternal(err error) error {
	if err == nil {
		return nil
	}
	return internalError{err: err}
}

// buildRuntime wires the config-driven specialist Pool, template Catalog,
// and in-memory Engine that every subcommand runs operations against.
// Temporal-backed execution is out of scope for this CLI entry point
// (the process that runs the Temporal worker wires workflow/engine/temporal
// directly); workflowctl targets the in-memory engine for local/dev use.
func buildRuntime() (workflow.Engine, *workflow.Catalog, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	agentList := make([]specialist.Agent, 0, len(cfg.Specialist.Agents))
	for _, a := range cfg.Specialist.Agents {
		agentList = append(agentList, agents.NewCommandAgent(
			specialist.Role(a.Role), a.Name, a.Command, a.Args,
			durationFromSeconds(a.EstimateSeconds),
		))
	}
	pool := specialist.New(agentList, cfg.Specialist.MaxConcurrentTasks)

	templates := workflow.DefaultTemplates()
	if cfg.Engine.CatalogFile != "" {
		loaded, err := workflow.LoadCatalogFile(cfg.Engine.CatalogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog file: %w", err)
		}
		templates = loaded
	}
	catalog := workflow.NewCatalog(templates)

	engine := inmem.New(pool, catalog, nil)
	return engine, catalog, nil
}
