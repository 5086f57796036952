package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var format string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available workflow templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, catalog, err := buildRuntime()
			if err != nil {
				return wrapInternal(err)
			}

			names := catalog.List()
			keys := make([]string, 0, len(names))
			for k := range names {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			if format == "json" {
				out := make(map[string]string, len(keys))
				for _, k := range keys {
					out[k] = names[k]
				}
				fmt.Fprintln(cmd.OutOrStdout(), marshalIndent(out))
				return nil
			}

			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s\n", k, names[k])
				if verbose {
					tmpl, err := catalog.Lookup(k)
					if err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "  category=%s complexity=%s tasks=%d estimated=%s\n",
							tmpl.Category, tmpl.Complexity, len(tmpl.Tasks), tmpl.EstimatedDuration)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "table|json")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "show template detail inline")
	return cmd
}
