package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/playground"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	index *template.Template
	docs  *template.Template
}

func loadPages() (*pages, error) {
	parse := func(name string) (*template.Template, error) {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		return t, nil
	}

	index, err := parse("index.html")
	if err != nil {
		return nil, err
	}
	docs, err := parse("docs.html")
	if err != nil {
		return nil, err
	}
	return &pages{index: index, docs: docs}, nil
}

type indexData struct {
	Title     string
	State     playground.State
	Languages []api.LanguageInfo
}

type docsData struct {
	Title       string
	Endpoint    string
	Languages   []api.LanguageInfo
	MaxCodeSize int
}

// render executes t into a buffer first so that a template error produces
// a clean 500 instead of a truncated page.
func render(w http.ResponseWriter, r *http.Request, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template render failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl := h.cfg.Sessions.Load(w, r)
	render(w, r, h.pages.index, indexData{
		Title:     "Glimpse: Code Execution API",
		State:     ctrl.State(),
		Languages: api.Languages(),
	})
}

func (h *Handler) handleDocs(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.pages.docs, docsData{
		Title:       "Glimpse Documentation",
		Endpoint:    h.cfg.RunnerEndpoint,
		Languages:   api.Languages(),
		MaxCodeSize: h.cfg.Validation.MaxCodeSize,
	})
}

// parseForm caps the body and parses the form. It writes the error
// response and returns false on failure.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseForm(); err != nil {
		apiErr, status := bodyError(err, h.maxBodySize)
		http.Error(w, apiErr.Message, status)
		return false
	}
	return true
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleSelectLanguage(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	ctrl := h.cfg.Sessions.Load(w, r)
	if err := ctrl.SelectLanguage(api.Language(r.PostFormValue("language"))); err != nil {
		http.Error(w, api.NewUnsupportedLanguageError().Message, http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func (h *Handler) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	ctrl := h.cfg.Sessions.Load(w, r)
	ctrl.LoadSample()
	redirectHome(w, r)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	ctrl := h.cfg.Sessions.Load(w, r)

	lang := api.Language(r.PostFormValue("language"))
	if lang == "" {
		lang = ctrl.State().Language
	}
	h.submit(r, ctrl, lang, normalizeNewlines(r.PostFormValue("code")), normalizeNewlines(r.PostFormValue("input")))
	redirectHome(w, r)
}

// normalizeNewlines undoes the CRLF line endings browsers use for
// textarea submissions.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
