package session

import (
	"container/list"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/glimpse/pkg/debug"
	"github.com/rhuss/glimpse/pkg/observability"
	"github.com/rhuss/glimpse/pkg/playground"
)

// CookieName is the cookie carrying the visitor's session ID.
const CookieName = "glimpse_session"

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Factory builds the controller for a new session.
type Factory func() *playground.Controller

// Config configures a Store.
type Config struct {
	// MaxSize limits the number of live sessions. 0 means unlimited.
	MaxSize int

	// TTL is the idle time after which a session expires. 0 disables expiry.
	TTL time.Duration

	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
}

type entry struct {
	id       string
	ctrl     *playground.Controller
	lastSeen time.Time
	lruElem  *list.Element
}

// Store is an in-memory session store with LRU and idle eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	cfg     Config
	factory Factory
	now     func() time.Time
}

// New creates a store that builds controllers with factory.
func New(cfg Config, factory Factory) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		cfg:     cfg,
		factory: factory,
		now:     time.Now,
	}
}

// Get returns the controller for id and marks it as used.
func (s *Store) Get(id string) (*playground.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if s.expiredLocked(e, now) {
		s.removeLocked(e)
		return nil, ErrNotFound
	}
	e.lastSeen = now
	s.lruList.MoveToFront(e.lruElem)
	return e.ctrl, nil
}

// Create starts a new session and returns its ID and controller.
func (s *Store) Create() (string, *playground.Controller) {
	id := uuid.New().String()
	ctrl := s.factory()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxSize > 0 && len(s.entries) >= s.cfg.MaxSize {
		s.evictOldest()
	}
	e := &entry{id: id, ctrl: ctrl, lastSeen: s.now()}
	e.lruElem = s.lruList.PushFront(e)
	s.entries[id] = e
	observability.ActiveSessions.Set(float64(len(s.entries)))

	debug.Log("session", "session created", "id", id, "active", len(s.entries))
	return id, ctrl
}

// Delete ends a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	s.removeLocked(e)
	return nil
}

// Len returns the number of live sessions, including expired ones that
// have not been swept yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	if s.cfg.TTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	// Oldest entries sit at the back of the list.
	for elem := s.lruList.Back(); elem != nil; {
		e := elem.Value.(*entry)
		prev := elem.Prev()
		if !s.expiredLocked(e, now) {
			break
		}
		s.removeLocked(e)
		removed++
		elem = prev
	}
	if removed > 0 {
		debug.Log("session", "expired sessions removed", "count", removed, "active", len(s.entries))
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.cfg.TTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = s.cfg.TTL / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Load returns the controller for the visitor making r. A missing, invalid
// or expired cookie starts a new session. The cookie is (re)issued on every
// call so that its lifetime follows the server-side idle TTL.
func (s *Store) Load(w http.ResponseWriter, r *http.Request) *playground.Controller {
	id, ctrl, ok := s.lookup(r)
	if !ok {
		id, ctrl = s.Create()
	}
	s.setCookie(w, id)
	return ctrl
}

// Peek returns the visitor's controller without starting a session.
// Visitors without a live session get a detached controller in its initial
// state, so read-only requests never take a slot in the store.
func (s *Store) Peek(w http.ResponseWriter, r *http.Request) *playground.Controller {
	id, ctrl, ok := s.lookup(r)
	if !ok {
		return s.factory()
	}
	s.setCookie(w, id)
	return ctrl
}

func (s *Store) lookup(r *http.Request) (string, *playground.Controller, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", nil, false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", nil, false
	}
	ctrl, err := s.Get(c.Value)
	if err != nil {
		return "", nil, false
	}
	return c.Value, ctrl, true
}

func (s *Store) setCookie(w http.ResponseWriter, id string) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if s.cfg.TTL > 0 {
		cookie.MaxAge = int(s.cfg.TTL / time.Second)
	}
	http.SetCookie(w, cookie)
}

func (s *Store) expiredLocked(e *entry, now time.Time) bool {
	return s.cfg.TTL > 0 && now.Sub(e.lastSeen) > s.cfg.TTL
}

// removeLocked must be called with s.mu held.
func (s *Store) removeLocked(e *entry) {
	s.lruList.Remove(e.lruElem)
	delete(s.entries, e.id)
	observability.ActiveSessions.Set(float64(len(s.entries)))
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	debug.Log("session", "evicting least recently used session", "id", e.id)
	s.removeLocked(e)
}
