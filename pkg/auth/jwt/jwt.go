// Package jwt authenticates bearer JWTs. Tokens are verified either with
// a shared HMAC secret or with RSA keys published at a JWKS endpoint.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/glimpse/pkg/auth"
)

// Config holds the JWT authenticator configuration. At least one of
// Secret and JWKSURL is required.
type Config struct {
	// Secret verifies HS256/HS384/HS512 tokens.
	Secret string

	// JWKSURL publishes the RSA keys that verify RS256/RS384/RS512 tokens.
	JWKSURL string

	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// SubjectClaim names the claim used as the identity subject. Default: "sub".
	SubjectClaim string

	// ScopesClaim names the scopes claim. Default: "scope". Both a
	// space-separated string and a JSON array are accepted.
	ScopesClaim string

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	cfg    Config
	parser *jwtlib.Parser
	keys   *keySet
}

// New creates a JWT authenticator.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("jwt: secret or jwks_url is required")
	}
	if cfg.SubjectClaim == "" {
		cfg.SubjectClaim = "sub"
	}
	if cfg.ScopesClaim == "" {
		cfg.ScopesClaim = "scope"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	var methods []string
	if cfg.Secret != "" {
		methods = append(methods, "HS256", "HS384", "HS512")
	}
	if cfg.JWKSURL != "" {
		methods = append(methods, "RS256", "RS384", "RS512")
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(methods),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	a := &Authenticator{cfg: cfg, parser: jwtlib.NewParser(opts...)}
	if cfg.JWKSURL != "" {
		a.keys = &keySet{url: cfg.JWKSURL, ttl: cfg.CacheTTL, client: cfg.HTTPClient, now: time.Now}
	}
	return a, nil
}

// Authenticate implements auth.Authenticator.
//
//   - Abstain: no bearer token
//   - No: a token that fails verification or lacks the subject claim
//   - Yes: a valid token
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	if _, err := a.parser.ParseWithClaims(tokenStr, claims, a.keyFunc(ctx)); err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	subject, _ := claims[a.cfg.SubjectClaim].(string)
	if subject == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("JWT missing %q claim", a.cfg.SubjectClaim)}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, Scopes: scopes(claims[a.cfg.ScopesClaim])},
	}
}

func (a *Authenticator) keyFunc(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (any, error) {
		switch token.Method.(type) {
		case *jwtlib.SigningMethodHMAC:
			return []byte(a.cfg.Secret), nil
		case *jwtlib.SigningMethodRSA:
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token missing kid header")
			}
			return a.keys.get(ctx, kid)
		default:
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
	}
}

func scopes(v any) []string {
	switch v := v.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// keySet caches the RSA keys of a JWKS endpoint. An unknown kid triggers
// a refresh, so rotated keys are picked up before the TTL expires.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func (s *keySet) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[kid]; ok && s.now().Sub(s.fetchedAt) < s.ttl {
		return key, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}
	return key, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *keySet) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	s.keys = keys
	s.fetchedAt = s.now()
	slog.Debug("JWKS refreshed", "keys", len(keys), "url", s.url)
	return nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
		return nil, errors.New("RSA exponent too large")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
