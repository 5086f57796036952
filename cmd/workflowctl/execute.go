package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfleet/orchestrator/workflow"
	"github.com/agentfleet/orchestrator/workflow/retry"
)

func executeCmd() *cobra.Command {
	var (
		workingDir       string
		language         string
		framework        string
		environment      string
		skipTasks        []string
		timeoutOverrides []string
		params           []string
		approvalPolicy   string
		executionMode    string
	)

	cmd := &cobra.Command{
		Use:   "execute <template>",
		Short: "Run a workflow template against the specialist pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch approvalPolicy {
			case "", "safe", "paranoid", "autopilot":
			default:
				return fmt.Errorf("--approval-policy must be one of safe, paranoid, autopilot")
			}
			switch executionMode {
			case "", "freeform", "structured":
			default:
				return fmt.Errorf("--execution-mode must be one of freeform, structured")
			}

			overrides := make(map[string]workflow.TaskOverride)
			for _, name := range skipTasks {
				overrides[name] = mergeOverride(overrides[name], workflow.TaskOverride{Skip: true})
			}
			for _, kv := range timeoutOverrides {
				name, val, err := splitKV(kv)
				if err != nil {
					return fmt.Errorf("--timeout-override: %w", err)
				}
				secs, err := parseSeconds(val)
				if err != nil {
					return fmt.Errorf("--timeout-override %s: %w", name, err)
				}
				o := overrides[name]
				o.TimeoutOverride = secs
				overrides[name] = o
			}
			globalParams := make(map[string]string)
			for _, kv := range params {
				name, val, err := splitKV(kv)
				if err != nil {
					return fmt.Errorf("--param: %w", err)
				}
				globalParams[name] = val
			}

			engine, catalog, err := buildRuntime()
			if err != nil {
				return wrapInternal(err)
			}
			tmpl, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			if len(globalParams) > 0 {
				for _, t := range tmpl.Tasks {
					overrides[t.Name] = mergeParams(overrides[t.Name], globalParams)
				}
			}

			cfg := workflow.Config{
				WorkingDir:    workingDir,
				Language:      language,
				Framework:     framework,
				Environment:   environment,
				TaskOverrides: overrides,
				RetryPolicy:   retry.DefaultConfig(),
			}

			id, err := engine.ExecuteWorkflow(cmd.Context(), args[0], cfg)
			if err != nil {
				return wrapInternal(err)
			}

			// approvalPolicy and executionMode are accepted and validated
			// here for the CLI surface spec.md §6 names, but the in-memory
			// engine has no differentiated scheduling behavior for them
			// yet (see DESIGN.md) — they're echoed back for operator
			// visibility only.
			fmt.Fprintf(cmd.OutOrStdout(), "execution_id: %s\napproval_policy: %s\nexecution_mode: %s\n",
				id, orDefault(approvalPolicy, "safe"), orDefault(executionMode, "structured"))
			return nil
		},
	}

	cmd.Flags().StringVar(&workingDir, "working-dir", ".", "working directory for specialist tasks")
	cmd.Flags().StringVar(&language, "language", "", "primary project language")
	cmd.Flags().StringVar(&framework, "framework", "", "primary project framework")
	cmd.Flags().StringVar(&environment, "environment", "", "target environment")
	cmd.Flags().StringArrayVar(&skipTasks, "skip-task", nil, "task name to skip (repeatable)")
	cmd.Flags().StringArrayVar(&timeoutOverrides, "timeout-override", nil, "name=secs timeout override (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "k=v parameter passed to every task (repeatable)")
	cmd.Flags().StringVar(&approvalPolicy, "approval-policy", "safe", "safe|paranoid|autopilot")
	cmd.Flags().StringVar(&executionMode, "execution-mode", "structured", "freeform|structured")
	return cmd
}

func mergeOverride(base, patch workflow.TaskOverride) workflow.TaskOverride {
	if patch.Skip {
		base.Skip = true
	}
	if patch.TimeoutOverride != 0 {
		base.TimeoutOverride = patch.TimeoutOverride
	}
	return base
}

func mergeParams(o workflow.TaskOverride, params map[string]string) workflow.TaskOverride {
	if o.Params == nil {
		o.Params = make(map[string]string)
	}
	for k, v := range params {
		o.Params[k] = v
	}
	return o
}

func splitKV(s string) (string, string, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	return parts[0], parts[1], nil
}

func parseSeconds(s string) (time.Duration, error) {
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil {
		return 0, fmt.Errorf("invalid integer seconds %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}

func durationFromSeconds(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
