// Package state issues and verifies the single-use anti-CSRF state tokens
// that bind an authorization request to its callback. All state is
// in-memory; outstanding tokens are invalidated on restart, which only
// forces affected users to restart the login flow.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/datachat-app/google-auth/utils"
)

var (
	// ErrUnknown is returned when a token was never issued or has already
	// been consumed.
	ErrUnknown = errors.New("unknown state token")

	// ErrExpired is returned when a token is presented after its TTL.
	ErrExpired = errors.New("state token expired")
)

const (
	// DefaultTTL bounds how long an authorization attempt may stay in
	// flight between the redirect to the provider and the callback.
	DefaultTTL = 10 * time.Minute

	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute
)

// State describes one in-flight authorization attempt.
type State struct {
	Token       string
	RedirectURL string
	IssuedAt    time.Time
}

// Store holds outstanding state tokens. The zero value is not usable;
// create one with NewStore and release it with Stop.
type Store struct {
	mu      sync.Mutex
	entries map[string]*State
	ttl     time.Duration
	stopGC  chan struct{}

	now func() time.Time
}

// NewStore creates an empty store with the given token TTL (DefaultTTL when
// zero) and starts a background goroutine that reaps expired entries.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Store{
		entries: make(map[string]*State),
		ttl:     ttl,
		stopGC:  make(chan struct{}),
		now:     time.Now,
	}
	go s.gcLoop()
	return s
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	close(s.stopGC)
}

func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

func (s *Store) cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, entry := range s.entries {
		if now.Sub(entry.IssuedAt) > s.ttl {
			delete(s.entries, token)
		}
	}
}

// Issue generates a random token and records it together with the
// post-login redirect target. The redirect never travels inside the state
// value itself; the browser only ever sees the opaque token.
func (s *Store) Issue(redirectURL string) (*State, error) {
	token, err := utils.RandomHex(32)
	if err != nil {
		return nil, err
	}

	entry := &State{
		Token:       token,
		RedirectURL: redirectURL,
		IssuedAt:    s.now(),
	}

	s.mu.Lock()
	s.entries[token] = entry
	s.mu.Unlock()

	return entry, nil
}

// Consume looks up and removes a token. The delete happens under the same
// lock as the lookup, so of two concurrent callbacks presenting the same
// token exactly one succeeds; the other gets ErrUnknown. An expired token
// is also removed but reported as ErrExpired so the caller can tell a stale
// attempt from a forged one.
func (s *Store) Consume(token string) (*State, error) {
	if token == "" {
		return nil, ErrUnknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, ErrUnknown
	}
	delete(s.entries, token)

	if s.now().Sub(entry.IssuedAt) > s.ttl {
		return nil, ErrExpired
	}
	return entry, nil
}

// Len reports the number of outstanding tokens.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
