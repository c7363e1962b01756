package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rhuss/glimpse/pkg/auth"
	"github.com/rhuss/glimpse/pkg/observability"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newLimiter(cfg Config) (*Limiter, *fakeClock) {
	l := New(cfg)
	clock := &fakeClock{t: time.Unix(1_800_000_000, 0)}
	l.now = clock.now
	return l, clock
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newLimiter(Config{RequestsPerMinute: 3})

	for i := 1; i <= 3; i++ {
		d := l.Allow("10.0.0.1")
		if !d.Allowed {
			t.Fatalf("request %d rejected", i)
		}
		if d.Remaining != 3-i {
			t.Errorf("request %d: Remaining = %d, want %d", i, d.Remaining, 3-i)
		}
	}
	if d := l.Allow("10.0.0.1"); d.Allowed || d.Remaining != 0 {
		t.Errorf("fourth request: %+v", d)
	}
}

func TestClientsAreCountedSeparately(t *testing.T) {
	l, _ := newLimiter(Config{RequestsPerMinute: 1})

	if !l.Allow("a").Allowed || !l.Allow("b").Allowed {
		t.Fatal("first request of each client should pass")
	}
	if l.Allow("a").Allowed {
		t.Error("second request of a should be rejected")
	}
}

func TestWindowResets(t *testing.T) {
	l, clock := newLimiter(Config{RequestsPerMinute: 1})

	first := l.Allow("a")
	if !first.Allowed {
		t.Fatal("first request rejected")
	}
	if want := clock.t.Add(time.Minute); !first.Reset.Equal(want) {
		t.Errorf("Reset = %v, want %v", first.Reset, want)
	}

	clock.t = clock.t.Add(59 * time.Second)
	if l.Allow("a").Allowed {
		t.Error("request inside the window should be rejected")
	}

	clock.t = clock.t.Add(time.Second)
	if !l.Allow("a").Allowed {
		t.Error("request in a new window should pass")
	}
}

func TestDisabled(t *testing.T) {
	l := New(Config{})
	if l.Enabled() {
		t.Error("zero limit should disable the limiter")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("a").Allowed {
			t.Fatal("disabled limiter rejected a request")
		}
	}

	var nilLimiter *Limiter
	if nilLimiter.Enabled() {
		t.Error("nil limiter should report disabled")
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		xff     string
		remote  string
		wantKey string
	}{
		{"remote addr", false, "", "192.0.2.1:5000", "192.0.2.1"},
		{"xff ignored", false, "203.0.113.9", "192.0.2.1:5000", "192.0.2.1"},
		{"xff first hop", true, "203.0.113.9, 10.0.0.1", "192.0.2.1:5000", "203.0.113.9"},
		{"xff empty", true, "", "192.0.2.1:5000", "192.0.2.1"},
		{"no port", false, "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{RequestsPerMinute: 1, TrustForwardedFor: tt.trust})
			req := httptest.NewRequest(http.MethodPost, "/run", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := l.ClientKey(req); got != tt.wantKey {
				t.Errorf("ClientKey = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestSpoofedForwardedForIsIgnoredByDefault(t *testing.T) {
	l, _ := newLimiter(Config{RequestsPerMinute: 30})
	h := l.Middleware("/spoof-route")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rejected := 0
	for i := range 200 {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.RemoteAddr = "198.51.100.20:4000"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i%250))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	if rejected != 170 {
		t.Errorf("rejected = %d, want 170", rejected)
	}
}

func TestClientKeyPrefersIdentity(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, TrustForwardedFor: true})
	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req = req.WithContext(auth.SetIdentity(req.Context(), &auth.Identity{Subject: "alice"}))

	if got := l.ClientKey(req); got != "sub:alice" {
		t.Errorf("ClientKey = %q, want sub:alice", got)
	}
}

func TestMiddleware(t *testing.T) {
	l, clock := newLimiter(Config{RequestsPerMinute: 2})
	calls := 0
	h := l.Middleware("/test-route")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	before := testutil.ToFloat64(observability.RateLimitRejectedTotal.WithLabelValues("/test-route"))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	wantReset := strconv.FormatInt(clock.t.Add(time.Minute).Unix(), 10)
	if got := rec.Header().Get("X-RateLimit-Reset"); got != wantReset {
		t.Errorf("X-RateLimit-Reset = %q, want %q", got, wantReset)
	}

	send()
	rec = send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Body.String() != RejectedMessage {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}

	after := testutil.ToFloat64(observability.RateLimitRejectedTotal.WithLabelValues("/test-route"))
	if after-before != 1 {
		t.Errorf("rejections metric delta = %v, want 1", after-before)
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	l := New(Config{})
	rec := httptest.NewRecorder()
	l.Middleware("/run")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("disabled limiter should not set headers")
	}
}
