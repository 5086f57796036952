package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfleet/orchestrator/workflow"
)

func statusCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show a workflow execution's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := buildRuntime()
			if err != nil {
				return wrapInternal(err)
			}
			id := workflow.ExecutionID(args[0])

			for {
				exec, err := engine.GetExecutionStatus(cmd.Context(), id)
				if err != nil {
					return wrapInternal(err)
				}
				printExecution(cmd, exec)

				if !follow || exec.Status.Terminal() {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return wrapInternal(cmd.Context().Err())
				case <-time.After(time.Second):
				}
			}
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "poll until the execution reaches a terminal state")
	return cmd
}

func printExecution(cmd *cobra.Command, exec *workflow.Execution) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  template=%s  status=%s\n", exec.ID, exec.TemplateKey, exec.Status)
	for name, t := range exec.Tasks {
		fmt.Fprintf(out, "  %-24s %-12s %3d%%\n", name, t.Status, t.ProgressPercentage)
	}
	if len(exec.Artifacts) > 0 {
		fmt.Fprintf(out, "  artifacts: %v\n", exec.Artifacts)
	}
}
