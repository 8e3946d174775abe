package session

import "time"

// Storage persists session records. Implementations must be safe for
// concurrent use. Get returns (nil, nil) for an absent session; expiry
// enforcement is the Manager's job, but backends with native TTL support
// (Redis) may drop expired records on their own.
type Storage interface {
	Put(s *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error

	// Sweep removes records that expired before now. Backends whose server
	// evicts on TTL may implement this as a no-op.
	Sweep(now time.Time) error
}
