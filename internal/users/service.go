package users

import (
	"context"
)

// Service handles user directory lookups and option resolution.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the user's profile, or shared.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// FindByEmail returns the user owning the email, or shared.ErrNotFound.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// GetOption resolves a per-user option, falling back to the documented
// default when no value is stored.
func (s *Service) GetOption(ctx context.Context, name string, userID int64) (string, error) {
	value, ok, err := s.repo.GetOption(ctx, name, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return optionDefaults[name], nil
	}
	return value, nil
}

// AllowsInvitations resolves the invitee's invitation preference.
func (s *Service) AllowsInvitations(ctx context.Context, userID int64) (bool, error) {
	value, err := s.GetOption(ctx, OptionAllowInvitations, userID)
	if err != nil {
		return false, err
	}
	return value != "false", nil
}
