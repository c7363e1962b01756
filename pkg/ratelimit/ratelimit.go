// Package ratelimit limits how often a client may trigger code runs.
//
// Limits are counted per client address, or per subject for authenticated
// API callers, in fixed one-minute windows.
// The limiter lives in process memory; it protects the remote runner from
// a single noisy visitor, not from a distributed flood.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/glimpse/pkg/auth"
	"github.com/rhuss/glimpse/pkg/observability"
)

// DefaultRequestsPerMinute matches the limit of the public runner proxy.
const DefaultRequestsPerMinute = 30

// RejectedMessage is the plain-text body of a 429 response.
const RejectedMessage = "Rate limit exceeded!"

const window = time.Minute

// Config configures a Limiter.
type Config struct {
	// RequestsPerMinute is the per-client budget. 0 disables limiting.
	RequestsPerMinute int

	// TrustForwardedFor keys clients by the first X-Forwarded-For hop
	// instead of the connection's remote address.
	TrustForwardedFor bool
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter is a fixed-window request counter keyed by client.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// New creates a limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:      cfg,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.RequestsPerMinute > 0
}

// Allow counts one request for key.
func (l *Limiter) Allow(key string) Decision {
	rpm := l.cfg.RequestsPerMinute
	now := l.now()
	if rpm <= 0 {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= window {
		c = &counter{windowAt: now}
		l.counters[key] = c
		l.pruneLocked(now)
	}
	c.count++

	remaining := rpm - c.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   c.count <= rpm,
		Limit:     rpm,
		Remaining: remaining,
		Reset:     c.windowAt.Add(window),
	}
}

// pruneLocked drops counters whose window has passed. Must be called with
// l.mu held.
func (l *Limiter) pruneLocked(now time.Time) {
	for k, c := range l.counters {
		if now.Sub(c.windowAt) >= window {
			delete(l.counters, k)
		}
	}
}

// ClientKey identifies the client that sent r. Authenticated API callers
// are limited per subject, anonymous visitors per IP address.
func (l *Limiter) ClientKey(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return "sub:" + id.Subject
	}
	if l.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limit on every request passing through it.
// route labels the rejection metric.
func (l *Limiter) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !l.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.ClientKey(r)
			d := l.Allow(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

			if !d.Allowed {
				slog.Warn("rate limit exceeded", "client", key, "route", route)
				observability.RateLimitRejectedTotal.WithLabelValues(route).Inc()
				retry := int(d.Reset.Sub(l.now()).Seconds() + 0.5)
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(RejectedMessage))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
