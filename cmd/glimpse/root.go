package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/glimpse/pkg/config"
	"github.com/rhuss/glimpse/pkg/debug"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "glimpse",
		Short: "Front-end for the Glimpse code execution API",
		Long: `glimpse - Playground and documentation for the Glimpse code execution API.

Code is executed remotely by the Glimpse runner. This command serves the
web playground, exposes the runner as MCP tools and submits snippets from
the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			debug.Init(debug.Options{
				Categories: cfg.Log.Debug,
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
			})
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newLanguagesCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
