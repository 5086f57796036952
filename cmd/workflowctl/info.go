package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <template>",
		Short: "Show a workflow template's task graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, err := buildRuntime()
			if err != nil {
				return wrapInternal(err)
			}
			tmpl, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", tmpl.DisplayName, tmpl.Key)
			fmt.Fprintf(out, "category: %s\ncomplexity: %s\nestimated: %s\n\n", tmpl.Category, tmpl.Complexity, tmpl.EstimatedDuration)
			for _, task := range tmpl.Tasks {
				fmt.Fprintf(out, "- %s [%s] %s\n", task.Name, task.Role, task.Description)
				if len(task.Dependencies) > 0 {
					fmt.Fprintf(out, "    depends_on: %v\n", task.Dependencies)
				}
				fmt.Fprintf(out, "    estimated: %s priority: %d\n", task.EstimatedDuration, task.Priority)
			}
			return nil
		},
	}
	return cmd
}
