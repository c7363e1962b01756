// Command mock-runner serves a deterministic stand-in for the remote
// POST /run-code-lambda endpoint. It never executes code: string literals
// passed to print(...) or console.log(...) are echoed, and a raise or
// throw statement produces an error, which is enough to exercise every
// path of the front-end locally.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rhuss/glimpse/pkg/api"
)

const (
	hourlyLimit   = 1000
	executionTime = `"0.001s"`
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{Addr: ":" + port, Handler: newMux(time.Now)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock runner starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock runner failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock runner shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func newMux(now func() time.Time) *http.ServeMux {
	q := &quota{now: now}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /run-code-lambda", func(w http.ResponseWriter, r *http.Request) {
		q.setHeaders(w.Header())
		handleRunCode(w, r)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// --- Handler ---

func handleRunCode(w http.ResponseWriter, r *http.Request) {
	var req api.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, api.ExecutionResult{Error: api.StringPtr("Invalid request body")})
		return
	}

	if !api.Supported(req.Language) {
		msg := "Language not supported. Available options: " + strings.Join(api.LanguageValues(), ", ")
		writeEnvelope(w, http.StatusBadRequest, api.ExecutionResult{Error: &msg})
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeEnvelope(w, http.StatusBadRequest, api.ExecutionResult{Error: api.StringPtr("No code provided")})
		return
	}

	output, errText := evaluate(req.Language, req.Code, req.Input)
	writeEnvelope(w, http.StatusOK, api.ExecutionResult{
		Output:        &output,
		Error:         &errText,
		ExecutionTime: json.RawMessage(executionTime),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, result api.ExecutionResult) {
	if status != http.StatusOK {
		result.ExecutionTime = json.RawMessage("null")
	}
	env, err := api.NewEnvelope(status, result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// --- Evaluation ---

var (
	stringLit = `("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')`
	printRe   = regexp.MustCompile(`^\s*(?:print|console\.log)\(\s*` + stringLit + `\s*\);?\s*$`)
	echoRe    = regexp.MustCompile(`^\s*(?:print\(\s*input\(\)\s*\)|console\.log\(\s*readline\(\)\s*\));?\s*$`)
	raiseRe   = regexp.MustCompile(`^\s*raise\s+(\w+)\(\s*` + stringLit + `?\s*\)\s*$`)
	throwRe   = regexp.MustCompile(`^\s*throw\s+new\s+(\w+)\(\s*` + stringLit + `?\s*\);?\s*$`)
)

// evaluate walks the program line by line. A runtime error discards the
// output, matching the real runner.
func evaluate(lang api.Language, code, input string) (output, errText string) {
	inputLines := strings.Split(input, "\n")
	var out strings.Builder

	for _, line := range strings.Split(code, "\n") {
		if m := printRe.FindStringSubmatch(line); m != nil {
			out.WriteString(unquote(m[1]))
			out.WriteByte('\n')
			continue
		}
		if echoRe.MatchString(line) {
			if len(inputLines) == 0 || (len(inputLines) == 1 && inputLines[0] == "") {
				return "", eofError(lang)
			}
			out.WriteString(inputLines[0])
			out.WriteByte('\n')
			inputLines = inputLines[1:]
			continue
		}
		re := raiseRe
		if lang == api.LanguageJavaScript {
			re = throwRe
		}
		if m := re.FindStringSubmatch(line); m != nil {
			if msg := unquote(m[2]); msg != "" {
				return "", m[1] + ": " + msg + "\n"
			}
			return "", m[1] + "\n"
		}
	}
	return out.String(), ""
}

func eofError(lang api.Language) string {
	if lang == api.LanguageJavaScript {
		return "Error: no more input\n"
	}
	return "EOFError: EOF when reading a line\n"
}

// unquote strips a Python or JavaScript string literal.
func unquote(lit string) string {
	if lit == "" {
		return ""
	}
	if lit[0] == '\'' {
		lit = `"` + strings.ReplaceAll(strings.ReplaceAll(lit[1:len(lit)-1], `\'`, `'`), `"`, `\"`) + `"`
	}
	s, err := strconv.Unquote(lit)
	if err != nil {
		return lit[1 : len(lit)-1]
	}
	return s
}

// --- Rate limit headers ---

// quota reports X-RateLimit-* headers for an hourly window. It never
// rejects; it only lets the front-end display the headers.
type quota struct {
	now func() time.Time

	mu    sync.Mutex
	start time.Time
	count int
}

func (q *quota) setHeaders(h http.Header) {
	q.mu.Lock()
	now := q.now()
	if q.start.IsZero() || now.Sub(q.start) >= time.Hour {
		q.start = now
		q.count = 0
	}
	q.count++
	remaining := max(hourlyLimit-q.count, 0)
	reset := q.start.Add(time.Hour).Unix()
	q.mu.Unlock()

	h.Set("X-RateLimit-Limit", strconv.Itoa(hourlyLimit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
}
