package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func executionsCmd() *cobra.Command {
	var format string
	var limit int

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List past and in-flight workflow executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := buildRuntime()
			if err != nil {
				return wrapInternal(err)
			}

			execs, err := engine.ListExecutions(cmd.Context(), limit)
			if err != nil {
				return wrapInternal(err)
			}
			sort.Slice(execs, func(i, j int) bool { return execs[i].StartTime.After(execs[j].StartTime) })

			if format == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), marshalIndent(execs))
				return nil
			}

			stats, err := engine.GetExecutionStatistics(cmd.Context())
			if err != nil {
				return wrapInternal(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d running=%d completed=%d failed=%d cancelled=%d\n\n",
				stats.Total, stats.Running, stats.Completed, stats.Failed, stats.Cancelled)
			for _, exec := range execs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  template=%s  status=%-10s started=%s\n",
					exec.ID, exec.TemplateKey, exec.Status, exec.StartTime.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "table|json")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of executions to list")
	return cmd
}
