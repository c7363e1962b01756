package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/auth"
	"github.com/rhuss/glimpse/pkg/debug"
	"github.com/rhuss/glimpse/pkg/observability"
	"github.com/rhuss/glimpse/pkg/playground"
	"github.com/rhuss/glimpse/pkg/ratelimit"
	"github.com/rhuss/glimpse/pkg/session"
)

// bodyHeadroom is added to the code size limit to cover form or JSON
// encoding overhead and the input buffer.
const bodyHeadroom = 64 << 10

// Config holds the dependencies of a Handler.
type Config struct {
	// Sessions resolves each visitor's playground controller. Required.
	Sessions *session.Store

	// Limiter guards the run endpoints. Nil disables rate limiting.
	Limiter *ratelimit.Limiter

	// Authenticator guards the JSON mutation endpoints and MCP. Nil leaves
	// them open. The HTML playground is never authenticated.
	Authenticator auth.Authenticator
	RequiredScope string

	// Validation carries the code size limit; it also sizes the body cap.
	Validation api.ValidationConfig

	// RunnerEndpoint is shown on the documentation page.
	RunnerEndpoint string

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// MCPPath and MCPHandler mount the MCP endpoint when both are set.
	MCPPath    string
	MCPHandler http.Handler

	Logger *slog.Logger
}

// Handler is the root http.Handler of the front-end.
type Handler struct {
	cfg         Config
	mux         *http.ServeMux
	pages       *pages
	maxBodySize int64
	handler     http.Handler
}

// NewHandler builds the router and middleware stack.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("web: session store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Validation.MaxCodeSize <= 0 {
		cfg.Validation = api.DefaultValidationConfig()
	}

	p, err := loadPages()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		cfg:         cfg,
		mux:         http.NewServeMux(),
		pages:       p,
		maxBodySize: int64(cfg.Validation.MaxCodeSize) + bodyHeadroom,
	}
	h.routes()

	h.handler = Chain(
		RequestID(),
		Logging(cfg.Logger),
		Recovery(cfg.Logger),
		observability.MetricsMiddleware,
	)(h.mux)

	return h, nil
}

func (h *Handler) routes() {
	limit := func(route string, next http.Handler) http.Handler {
		if h.cfg.Limiter == nil {
			return next
		}
		return h.cfg.Limiter.Middleware(route)(next)
	}
	// Authentication runs before the limiter so that callers are counted
	// per subject.
	protect := auth.Middleware(h.cfg.Authenticator, auth.Options{RequiredScope: h.cfg.RequiredScope})

	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("POST /language", h.handleSelectLanguage)
	h.mux.HandleFunc("POST /sample", h.handleLoadSample)
	h.mux.Handle("POST /run", limit("/run", http.HandlerFunc(h.handleRun)))
	h.mux.HandleFunc("GET /docs", h.handleDocs)

	h.mux.HandleFunc("GET /api/state", h.handleAPIState)
	h.mux.Handle("POST /api/language", protect(http.HandlerFunc(h.handleAPILanguage)))
	h.mux.Handle("POST /api/run", protect(limit("/api/run", http.HandlerFunc(h.handleAPIRun))))
	h.mux.HandleFunc("GET /api/languages", h.handleAPILanguages)
	h.mux.HandleFunc("GET /api/events", h.handleEvents)

	h.mux.HandleFunc("GET /healthz", h.handleHealth)

	if h.cfg.MetricsPath != "" {
		h.mux.Handle("GET "+h.cfg.MetricsPath, promhttp.Handler())
	}
	if h.cfg.MCPPath != "" && h.cfg.MCPHandler != nil {
		h.mux.Handle(h.cfg.MCPPath, protect(limit(h.cfg.MCPPath, h.cfg.MCPHandler)))
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// runContext detaches a run from the client connection so that a visitor
// navigating away does not turn a finished run into a transport error.
// The runner's own timeout still bounds the call.
func runContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *Handler) submit(r *http.Request, ctrl *playground.Controller, lang api.Language, code, input string) playground.State {
	debug.Log("web", "run submitted",
		"request_id", RequestIDFromContext(r.Context()),
		"language", lang,
		"code_bytes", len(code),
	)
	return ctrl.Submit(runContext(r), code, input, lang)
}
