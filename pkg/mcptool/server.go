// Package mcptool exposes the remote runner as Model Context Protocol tools.
//
// Two tools are registered:
//
//   - run_code executes a snippet and returns its output. Output and error
//     text are returned as separate content blocks; a non-empty error marks
//     the result as an error.
//   - list_languages returns the supported languages and their samples.
//
// The server is stateless: tool calls never touch a visitor's playground.
package mcptool

import (
	"context"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/debug"
	"github.com/rhuss/glimpse/pkg/observability"
	"github.com/rhuss/glimpse/pkg/playground"
)

// Tool names.
const (
	ToolRunCode       = "run_code"
	ToolListLanguages = "list_languages"
)

// RunCodeInput is the argument object of run_code.
type RunCodeInput struct {
	Language api.Language `json:"language" jsonschema:"language identifier, py or js"`
	Code     string       `json:"code" jsonschema:"source code to execute"`
	Input    string       `json:"input,omitempty" jsonschema:"standard input for the program"`
}

// RunCodeOutput is the structured result of run_code.
type RunCodeOutput struct {
	Output        string `json:"output"`
	Error         string `json:"error"`
	ExecutionTime string `json:"executionTime,omitempty"`
}

// ListLanguagesOutput is the structured result of list_languages.
type ListLanguagesOutput struct {
	Languages []api.LanguageInfo `json:"languages"`
}

// NewServer creates an MCP server whose tools call r.
func NewServer(r playground.Runner, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "glimpse", Version: version},
		nil,
	)
	t := &tools{runner: r}

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolRunCode,
		Description: "Executes a code snippet on the Glimpse runner and returns its standard output and error text.",
	}, t.runCode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolListLanguages,
		Description: "Lists the languages accepted by run_code with a hello-world sample for each.",
	}, t.listLanguages)

	return server
}

// Handler serves server over streamable HTTP.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

type tools struct {
	runner playground.Runner
}

func (t *tools) runCode(ctx context.Context, _ *mcp.CallToolRequest, in RunCodeInput) (*mcp.CallToolResult, RunCodeOutput, error) {
	debug.Log("mcp", "run_code called", "language", in.Language, "code_bytes", len(in.Code))

	resp, err := t.runner.Run(ctx, &api.ExecutionRequest{
		Language: in.Language,
		Code:     in.Code,
		Input:    in.Input,
	})

	var out RunCodeOutput
	out.Output, out.Error, out.ExecutionTime = playground.Outcome(resp, err)

	result := &mcp.CallToolResult{}
	if out.Output != "" || out.Error == "" {
		result.Content = append(result.Content, &mcp.TextContent{Text: out.Output})
	}
	if out.Error != "" {
		result.Content = append(result.Content, &mcp.TextContent{Text: out.Error})
		result.IsError = true
	}

	recordCall(ToolRunCode, result.IsError)
	return result, out, nil
}

func (t *tools) listLanguages(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListLanguagesOutput, error) {
	langs := api.Languages()

	var b strings.Builder
	for _, l := range langs {
		b.WriteString(string(l.Value))
		b.WriteString(" (")
		b.WriteString(l.Label)
		b.WriteString("): ")
		b.WriteString(l.Sample)
		b.WriteString("\n")
	}

	recordCall(ToolListLanguages, false)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
	}, ListLanguagesOutput{Languages: langs}, nil
}

func recordCall(tool string, isError bool) {
	status := "ok"
	if isError {
		status = "error"
	}
	observability.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
