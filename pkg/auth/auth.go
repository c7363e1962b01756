package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
)

// Decision is the outcome of a single authentication attempt.
type Decision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes Decision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means the authenticator cannot handle the credentials type.
	// The chain continues with the next authenticator.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result carries the outcome of an authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity is an authenticated API caller.
type Identity struct {
	// Subject identifies the caller. It keys per-caller rate limits.
	Subject string

	// Scopes lists the authorization scopes granted.
	Scopes []string
}

// HasScope reports whether the identity was granted scope.
func (id *Identity) HasScope(scope string) bool {
	return id != nil && slices.Contains(id.Scopes, scope)
}

// Authenticator examines request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("missing required scope")
)

// Chain evaluates authenticators in order and stops on the first Yes or No.
// When all abstain the request is unauthenticated.
type Chain []Authenticator

// Authenticate implements Authenticator.
func (c Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// ok is false when the header is absent or uses another scheme, which
// authenticators treat as Abstain. An empty token yields ok with "".
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}
