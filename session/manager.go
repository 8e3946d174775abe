package session

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a session exists but is past its expiry.
	// The entry is evicted as a side effect.
	ErrExpired = errors.New("session expired")
)

const (
	// DefaultMaxLifetime caps how long a login lasts regardless of the
	// provider token expiry.
	DefaultMaxLifetime = 12 * time.Hour

	// sweepInterval controls how often expired sessions are reaped.
	sweepInterval = 5 * time.Minute
)

// Manager enforces session lifecycle over a Storage backend. Sessions are
// never refreshed implicitly; once expired, the user repeats the full
// authorization flow.
type Manager struct {
	storage     Storage
	maxLifetime time.Duration
	stopGC      chan struct{}

	now func() time.Time
}

// NewManager wraps storage and starts a background goroutine that sweeps
// expired sessions. Call Stop to release it. maxLifetime falls back to
// DefaultMaxLifetime when zero.
func NewManager(storage Storage, maxLifetime time.Duration) *Manager {
	if maxLifetime <= 0 {
		maxLifetime = DefaultMaxLifetime
	}

	m := &Manager{
		storage:     storage,
		maxLifetime: maxLifetime,
		stopGC:      make(chan struct{}),
		now:         time.Now,
	}
	go m.gcLoop()
	return m
}

// Stop terminates the background sweep goroutine.
func (m *Manager) Stop() {
	close(m.stopGC)
}

func (m *Manager) gcLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = m.storage.Sweep(m.now())
		case <-m.stopGC:
			return
		}
	}
}

// Create stores a new session for identity. The session expires at the
// provider token expiry or after the configured maximum lifetime, whichever
// comes first. A zero tokenExpiry means the provider did not report one and
// only the maximum lifetime applies.
func (m *Manager) Create(identity UserIdentity, tokenExpiry time.Time) (*Session, error) {
	expiresAt := m.now().Add(m.maxLifetime)
	if !tokenExpiry.IsZero() && tokenExpiry.Before(expiresAt) {
		expiresAt = tokenExpiry
	}

	s := &Session{
		ID:        GenerateSessionID(),
		Identity:  identity,
		ExpiresAt: expiresAt,
	}

	if err := m.storage.Put(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup resolves a session id to its identity. An expired session is
// evicted and reported as ErrExpired; an absent one as ErrNotFound.
func (m *Manager) Lookup(id string) (UserIdentity, error) {
	s, err := m.storage.Get(id)
	if err != nil {
		return UserIdentity{}, err
	}
	if s == nil {
		return UserIdentity{}, ErrNotFound
	}

	if m.now().After(s.ExpiresAt) {
		_ = m.storage.Delete(id)
		return UserIdentity{}, ErrExpired
	}

	return s.Identity, nil
}

// Invalidate removes a session unconditionally. Invalidating an absent
// session is not an error.
func (m *Manager) Invalidate(id string) error {
	return m.storage.Delete(id)
}
