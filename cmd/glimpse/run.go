package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/playground"
	"github.com/rhuss/glimpse/pkg/runner"
)

type runOptions struct {
	code      string
	lang      string
	input     string
	inputFile string
	endpoint  string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run code on the remote runner",
		Long: `Submit Python or JavaScript code to the Glimpse runner and print the result.

Code can be provided via:
  - File argument: glimpse run script.py
  - Inline flag: glimpse run -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | glimpse run -l py

Program output is written to stdout. Error text is written to stderr and
the command exits with status 1.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCode(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.code, "code", "c", "", "Code to execute")
	cmd.Flags().StringVarP(&opts.lang, "lang", "l", "", "Language: py, js (default: from file extension, else py)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Standard input for the program")
	cmd.Flags().StringVar(&opts.inputFile, "input-file", "", "Read standard input for the program from a file")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Runner endpoint URL (overrides config)")
	return cmd
}

func runCode(cmd *cobra.Command, root *rootOptions, opts *runOptions, args []string) error {
	var source, filename string
	switch {
	case opts.code != "":
		source = opts.code
	case len(args) > 0:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			return err
		}
		source = string(data)
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		source = string(data)
	}
	if strings.TrimSpace(source) == "" {
		return errors.New("no code given: use glimpse run FILE, -c CODE or pipe code on stdin")
	}

	lang, err := detectLanguage(opts.lang, filename)
	if err != nil {
		return err
	}

	input := opts.input
	if opts.inputFile != "" {
		data, err := os.ReadFile(opts.inputFile)
		if err != nil {
			return err
		}
		input = string(data)
	}

	cfg := root.cfg
	endpoint := cfg.Runner.Endpoint
	if opts.endpoint != "" {
		endpoint = opts.endpoint
	}
	client, err := runner.New(runner.Config{
		Endpoint:   endpoint,
		Timeout:    cfg.Runner.Timeout,
		Validation: api.ValidationConfig{MaxCodeSize: cfg.Runner.MaxCodeSize},
	})
	if err != nil {
		return err
	}

	// A throwaway controller gives the CLI the same error mapping as the
	// web playground.
	ctrl := playground.New(client, playground.WithValidation(api.ValidationConfig{MaxCodeSize: cfg.Runner.MaxCodeSize}))
	state := ctrl.Submit(context.Background(), source, input, lang)

	if state.Output != "" {
		fmt.Fprint(cmd.OutOrStdout(), state.Output)
	}
	if state.Error != "" {
		msg := state.Error
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		fmt.Fprint(cmd.ErrOrStderr(), msg)
		return &exitError{}
	}
	return nil
}

// detectLanguage picks the language from the flag, else from the file
// extension, else the default language.
func detectLanguage(flag, filename string) (api.Language, error) {
	lang := strings.ToLower(flag)
	if lang == "" && filename != "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".py":
			lang = "py"
		case ".js", ".mjs", ".cjs":
			lang = "js"
		}
	}

	switch lang {
	case "":
		return api.DefaultLanguage, nil
	case "py", "python":
		return api.LanguagePython, nil
	case "js", "javascript", "node":
		return api.LanguageJavaScript, nil
	default:
		return "", fmt.Errorf("unknown language %q: use py or js", lang)
	}
}
