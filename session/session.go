// Package session binds opaque session identifiers to authenticated
// identities for a bounded lifetime. The session id is the only value that
// ever leaves the server; provider tokens are not stored here.
package session

import (
	"time"

	"github.com/google/uuid"
)

// UserIdentity is the authenticated user as derived from the verified
// id-token claims. Immutable once created.
type UserIdentity struct {
	SubjectID    string `json:"sub"`
	Email        string `json:"email"`
	DisplayName  string `json:"name,omitempty"`
	Picture      string `json:"picture,omitempty"`
	HostedDomain string `json:"hd,omitempty"`
}

// Session is one server-side login record.
type Session struct {
	ID        string       `json:"id"`
	Identity  UserIdentity `json:"identity"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// GenerateSessionID returns a new opaque session identifier.
func GenerateSessionID() string {
	return uuid.New().String()
}
