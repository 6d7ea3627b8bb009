// Package auth covers the session lifecycle boundary: login creates a
// session, logout and administrative revocation destroy them. Identity
// management beyond credential verification lives elsewhere.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/atriumhq/atrium/internal/sessions"
	"github.com/atriumhq/atrium/internal/shared"
	"github.com/atriumhq/atrium/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	users    *users.Service
	sessions *sessions.Manager
}

// NewService constructs a new Service.
func NewService(userSvc *users.Service, manager *sessions.Manager) *Service {
	return &Service{users: userSvc, sessions: manager}
}

// Login validates credentials and issues a session. Every failure mode
// collapses into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*sessions.Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if user.Status != users.StatusActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return s.sessions.Create(ctx, user.ID, ip, ua)
}

// Logout revokes the caller's session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}

// RevokeUserSessions revokes every live session owned by the user, for
// administrative revocation.
func (s *Service) RevokeUserSessions(ctx context.Context, userID int64) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}
