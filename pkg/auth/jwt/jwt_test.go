package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/glimpse/pkg/auth"
)

const (
	testSecret = "playground-secret"
	testKID    = "test-key-1"
	testIssuer = "https://auth.example.com"
)

var testKey *rsa.PrivateKey

func init() {
	var err error
	testKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
}

// jwksServer publishes the test public key and counts fetches.
func jwksServer(t *testing.T, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		pub := testKey.PublicKey
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{
				{"kty": "EC", "kid": "ignored"},
				{
					"kty": "RSA",
					"kid": testKID,
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hmacToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func rsaToken(t *testing.T, kid string, claims jwtlib.MapClaims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"aud": "glimpse",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func authenticate(t *testing.T, a *Authenticator, header string) auth.Result {
	t.Helper()
	r := httptest.NewRequest("POST", "/api/run", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return a.Authenticate(context.Background(), r)
}

func newHMAC(t *testing.T, override func(*Config)) *Authenticator {
	t.Helper()
	cfg := Config{Secret: testSecret, Issuer: testIssuer, Audience: "glimpse"}
	if override != nil {
		override(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewRequiresKeySource(t *testing.T) {
	if _, err := New(Config{Issuer: testIssuer}); err == nil {
		t.Fatal("expected error without secret or jwks_url")
	}
}

func TestHMAC(t *testing.T) {
	a := newHMAC(t, nil)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAud := validClaims()
	wrongAud["aud"] = "other"
	wrongIss := validClaims()
	wrongIss["iss"] = "https://evil.example.com"
	noSub := validClaims()
	delete(noSub, "sub")

	forged, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, validClaims()).SignedString([]byte("wrong"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   auth.Decision
	}{
		{"no header", "", auth.Abstain},
		{"other scheme", "Basic Zm9vOmJhcg==", auth.Abstain},
		{"empty token", "Bearer ", auth.No},
		{"garbage", "Bearer not.a.jwt", auth.No},
		{"valid", "Bearer " + hmacToken(t, validClaims()), auth.Yes},
		{"expired", "Bearer " + hmacToken(t, expired), auth.No},
		{"wrong audience", "Bearer " + hmacToken(t, wrongAud), auth.No},
		{"wrong issuer", "Bearer " + hmacToken(t, wrongIss), auth.No},
		{"missing subject", "Bearer " + hmacToken(t, noSub), auth.No},
		{"wrong secret", "Bearer " + forged, auth.No},
		{"rsa without jwks", "Bearer " + rsaToken(t, testKID, validClaims()), auth.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := authenticate(t, a, tt.header)
			if res.Decision != tt.want {
				t.Fatalf("Decision = %s, want %s (err %v)", res.Decision, tt.want, res.Err)
			}
			if tt.want == auth.Yes && res.Identity.Subject != "user-123" {
				t.Errorf("Subject = %q", res.Identity.Subject)
			}
		})
	}
}

func TestLeeway(t *testing.T) {
	claims := validClaims()
	claims["exp"] = time.Now().Add(-10 * time.Second).Unix()
	token := "Bearer " + hmacToken(t, claims)

	if res := authenticate(t, newHMAC(t, nil), token); res.Decision != auth.No {
		t.Errorf("without leeway: Decision = %s, want no", res.Decision)
	}
	lenient := newHMAC(t, func(c *Config) { c.Leeway = time.Minute })
	if res := authenticate(t, lenient, token); res.Decision != auth.Yes {
		t.Errorf("with leeway: Decision = %s, want yes (err %v)", res.Decision, res.Err)
	}
}

func TestScopesAndCustomClaims(t *testing.T) {
	a := newHMAC(t, func(c *Config) {
		c.SubjectClaim = "email"
		c.ScopesClaim = "permissions"
	})

	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"space separated", "run read", []string{"run", "read"}},
		{"array", []string{"run", "admin"}, []string{"run", "admin"}},
		{"missing", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			claims["email"] = "dev@example.com"
			if tt.value != nil {
				claims["permissions"] = tt.value
			}
			res := authenticate(t, a, "Bearer "+hmacToken(t, claims))
			if res.Decision != auth.Yes {
				t.Fatalf("Decision = %s (err %v)", res.Decision, res.Err)
			}
			if res.Identity.Subject != "dev@example.com" {
				t.Errorf("Subject = %q", res.Identity.Subject)
			}
			if !slices.Equal(res.Identity.Scopes, tt.want) {
				t.Errorf("Scopes = %v, want %v", res.Identity.Scopes, tt.want)
			}
		})
	}
}

func TestJWKS(t *testing.T) {
	var fetches atomic.Int32
	srv := jwksServer(t, &fetches)

	a, err := New(Config{JWKSURL: srv.URL, Issuer: testIssuer})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   auth.Decision
	}{
		{"valid", "Bearer " + rsaToken(t, testKID, validClaims()), auth.Yes},
		{"missing kid", "Bearer " + rsaToken(t, "", validClaims()), auth.No},
		{"unknown kid", "Bearer " + rsaToken(t, "rotated-away", validClaims()), auth.No},
		{"hmac not accepted", "Bearer " + hmacToken(t, validClaims()), auth.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := authenticate(t, a, tt.header)
			if res.Decision != tt.want {
				t.Fatalf("Decision = %s, want %s (err %v)", res.Decision, tt.want, res.Err)
			}
		})
	}
}

func TestJWKSCaching(t *testing.T) {
	var fetches atomic.Int32
	srv := jwksServer(t, &fetches)

	a, err := New(Config{JWKSURL: srv.URL, CacheTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	a.keys.now = func() time.Time { return now }

	token := "Bearer " + rsaToken(t, testKID, validClaims())
	for range 3 {
		if res := authenticate(t, a, token); res.Decision != auth.Yes {
			t.Fatalf("Decision = %s (err %v)", res.Decision, res.Err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}

	now = now.Add(2 * time.Hour)
	if res := authenticate(t, a, token); res.Decision != auth.Yes {
		t.Fatalf("Decision after expiry = %s", res.Decision)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("fetches after TTL = %d, want 2", got)
	}
}

func TestJWKSUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := New(Config{JWKSURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	res := authenticate(t, a, "Bearer "+rsaToken(t, testKID, validClaims()))
	if res.Decision != auth.No || res.Err == nil {
		t.Errorf("Decision = %s, err = %v; want no with error", res.Decision, res.Err)
	}
}
