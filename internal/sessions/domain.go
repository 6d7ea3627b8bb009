package sessions

import (
	"context"
	"time"
)

// Session is a live authenticated connection, revocable independently of
// the credential that created it.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IP        string
	UA        string
}

// Live reports whether the session is neither revoked nor expired at now.
func (s *Session) Live(now time.Time) bool {
	if s == nil || s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// Store defines persistence operations for session records.
type Store interface {
	Create(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
