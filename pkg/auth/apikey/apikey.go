// Package apikey authenticates bearer tokens against a static set of API
// keys. Keys are stored as SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/rhuss/glimpse/pkg/auth"
)

// Key is the configuration form of an API key.
type Key struct {
	Key     string
	Subject string
	Scopes  []string
}

type entry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against the configured keys.
type Authenticator struct {
	keys []entry
}

// New hashes keys immediately; plaintext keys are not retained. Keys
// without a subject are identified by a prefix of their hash.
func New(keys []Key) *Authenticator {
	a := &Authenticator{keys: make([]entry, 0, len(keys))}
	for _, k := range keys {
		e := entry{
			hash:     sha256.Sum256([]byte(k.Key)),
			identity: auth.Identity{Subject: k.Subject, Scopes: k.Scopes},
		}
		if e.identity.Subject == "" {
			e.identity.Subject = "key-" + hex.EncodeToString(e.hash[:6])
		}
		a.keys = append(a.keys, e)
	}
	return a
}

// Authenticate implements auth.Authenticator.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(token))
	match := -1
	// Every key is compared so the timing does not reveal the position.
	for i := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], a.keys[i].hash[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	id := a.keys[match].identity
	return auth.Result{Decision: auth.Yes, Identity: &id}
}
