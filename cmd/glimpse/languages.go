package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/glimpse/pkg/api"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "languages",
		Short:             "List supported languages and their samples",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLANGUAGE\tSAMPLE")
			for _, l := range api.Languages() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Value, l.Label, l.Sample)
			}
			return tw.Flush()
		},
	}
}
