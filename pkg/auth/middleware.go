package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/observability"
)

// Options tune Middleware.
type Options struct {
	// RequiredScope, when set, must be among the identity's scopes.
	RequiredScope string
}

// Middleware authenticates every request with a. A nil authenticator
// leaves the route open. Authenticated requests carry their Identity in
// the context.
func Middleware(a Authenticator, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := a.Authenticate(r.Context(), r)

			if res.Decision != Yes || res.Identity == nil {
				err := res.Err
				if err == nil {
					err = ErrUnauthenticated
				}
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				reject(w, http.StatusUnauthorized, "invalid_credentials", "authentication required")
				return
			}

			if res.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				observability.AuthRejectedTotal.WithLabelValues("empty_subject").Inc()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.NewServerError("internal authentication error")})
				return
			}

			if opts.RequiredScope != "" && !res.Identity.HasScope(opts.RequiredScope) {
				slog.Warn("authorization failed",
					"subject", res.Identity.Subject,
					"path", r.URL.Path,
					"error", ErrForbidden,
				)
				reject(w, http.StatusForbidden, "missing_scope", ErrForbidden.Error()+": "+opts.RequiredScope)
				return
			}

			slog.Debug("authentication succeeded",
				"subject", res.Identity.Subject,
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), res.Identity)))
		})
	}
}

func reject(w http.ResponseWriter, status int, reason, message string) {
	observability.AuthRejectedTotal.WithLabelValues(reason).Inc()
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="glimpse"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.NewAuthenticationError(message)})
}
