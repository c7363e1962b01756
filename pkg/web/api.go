package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rhuss/glimpse/pkg/api"
)

type languageRequest struct {
	Language api.Language `json:"language"`
}

// decodeJSON caps and decodes a JSON request body into v. It writes the
// error response and returns false on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apiErr, status := bodyError(err, h.maxBodySize)
		writeErrorResponse(w, apiErr, status)
		return false
	}
	return true
}

func (h *Handler) handleAPIState(w http.ResponseWriter, r *http.Request) {
	ctrl := h.cfg.Sessions.Peek(w, r)
	writeJSON(w, http.StatusOK, ctrl.State())
}

func (h *Handler) handleAPILanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ctrl := h.cfg.Sessions.Load(w, r)
	if err := ctrl.SelectLanguage(req.Language); err != nil {
		writeAPIError(w, api.NewUnsupportedLanguageError())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.State())
}

// handleAPIRun runs code and returns the resulting state. Runner failures
// are part of the state, so the response is 200 unless the request itself
// is malformed.
func (h *Handler) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	var req api.ExecutionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ctrl := h.cfg.Sessions.Load(w, r)
	if req.Language == "" {
		req.Language = ctrl.State().Language
	}
	writeJSON(w, http.StatusOK, h.submit(r, ctrl, req.Language, req.Code, req.Input))
}

func (h *Handler) handleAPILanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data":   api.Languages(),
	})
}
