package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rhuss/glimpse/pkg/debug"
	"github.com/rhuss/glimpse/pkg/playground"
)

// keepaliveInterval is how often an idle event stream sends a comment
// line so that proxies keep the connection open.
var keepaliveInterval = 25 * time.Second

// handleEvents streams the visitor's playground state as server-sent
// events. Every state change produces one event:
//
//	event: state
//	data: {json}
//
// The first event carries the current state. A visitor without a session
// only receives the initial state; streams never start a session.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctrl := h.cfg.Sessions.Peek(w, r)
	rc := http.NewResponseController(w)

	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	debug.Log("web", "event stream opened", "request_id", RequestIDFromContext(r.Context()))
	for {
		select {
		case <-r.Context().Done():
			debug.Log("web", "event stream closed", "request_id", RequestIDFromContext(r.Context()))
			return
		case s := <-updates:
			if err := writeStateEvent(w, s); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeStateEvent(w http.ResponseWriter, s playground.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
