package session

import (
	"context"
	"time"
)

// Session is the server's view of one browser. It only points at a user;
// an empty UserID means anonymous.
type Session struct {
	ID        string    // rotated on every login
	UserID    string    // references users.id
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (s Session) Anonymous() bool {
	return s.UserID == ""
}

// Patch is a pending change to a session produced by a read that found it
// stale. The caller applies it explicitly.
type Patch struct {
	ClearUser bool
	RevokeID  string // live-session entry to drop, if any
}

func (p Patch) Empty() bool {
	return !p.ClearUser && p.RevokeID == ""
}

// Apply returns the patched session. Clearing the user also drops the ID,
// leaving a fresh anonymous session.
func (p Patch) Apply(s Session) Session {
	if p.ClearUser {
		return Session{}
	}
	return s
}

// Store tracks which session IDs are live. The cookie alone proves who a
// session belongs to; the store is what lets rotation and logout revoke an
// old cookie before it expires.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}
