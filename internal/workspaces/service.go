package workspaces

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atriumhq/atrium/internal/roles"
	"github.com/atriumhq/atrium/internal/shared"
	"github.com/atriumhq/atrium/internal/users"
)

// UserDirectory resolves invitees and their invitation preference.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	AllowsInvitations(ctx context.Context, userID int64) (bool, error)
}

// RoleDirectory resolves workspace-scoped roles by name.
type RoleDirectory interface {
	GetRoleInfo(ctx context.Context, scope roles.Scope, name string) (roles.Role, error)
}

// Dispatcher sends fire-and-forget notifications. A dispatch failure never
// rolls back the mutation that triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, subject, body, kind string) error
}

// Service drives the workspace and membership lifecycle.
type Service struct {
	repo       RepositoryPort
	users      UserDirectory
	roles      RoleDirectory
	dispatcher Dispatcher
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, users UserDirectory, roleDir RoleDirectory, dispatcher Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		users:      users,
		roles:      roleDir,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateWorkspace creates the workspace together with its founding Owner
// membership and seeded administrator role.
func (s *Service) CreateWorkspace(ctx context.Context, ownerID int64, name, description string, isPublic bool) (Workspace, error) {
	return s.repo.CreateWorkspace(ctx, Workspace{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreateDate:  s.clock(),
		IsPublic:    isPublic,
		Active:      true,
	})
}

// GetWorkspace fetches a workspace by id.
func (s *Service) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	return s.repo.GetWorkspace(ctx, id)
}

// ListForUser returns workspaces where the user holds any membership row.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Workspace, error) {
	return s.repo.ListWorkspacesForUser(ctx, userID)
}

// ModifyWorkspace updates mutable workspace attributes.
func (s *Service) ModifyWorkspace(ctx context.Context, ws Workspace) error {
	return s.repo.UpdateWorkspace(ctx, ws)
}

// DeleteWorkspace removes the workspace and everything scoped to it.
func (s *Service) DeleteWorkspace(ctx context.Context, id int64) error {
	return s.repo.DeleteWorkspace(ctx, id)
}

// Invite creates an Invited membership row for the user owning
// inviteeEmail. The inviter must hold Owner status; the invitee must not
// already hold a row and must allow invitations.
func (s *Service) Invite(ctx context.Context, workspaceID, inviterID int64, inviteeEmail string, notify bool) error {
	if err := s.requireOwner(ctx, workspaceID, inviterID); err != nil {
		return err
	}
	invitee, err := s.users.FindByEmail(ctx, inviteeEmail)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetMembership(ctx, workspaceID, invitee.ID); err == nil {
		return fmt.Errorf("workspaces: invite: %w", shared.ErrAlreadyMember)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	allowed, err := s.users.AllowsInvitations(ctx, invitee.ID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("workspaces: invite: %w", shared.ErrInviteeOptOut)
	}
	if err := s.repo.CreateMembership(ctx, Membership{
		WorkspaceID: workspaceID,
		UserID:      invitee.ID,
		Status:      StatusInvited,
		InviteDate:  s.clock(),
	}); err != nil {
		return err
	}
	if notify {
		s.notify(ctx, invitee.ID, "Workspace invitation",
			"You have been invited to join a workspace.", "workspace.invite")
	}
	return nil
}

// ProcessInvitation accepts or rejects a pending invitation. Only an
// Invited row qualifies; anything else is ErrNotFound.
func (s *Service) ProcessInvitation(ctx context.Context, workspaceID, userID int64, reject bool) error {
	m, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if m.Status != StatusInvited {
		return fmt.Errorf("workspaces: no pending invitation: %w", shared.ErrNotFound)
	}
	if reject {
		return s.repo.DeleteMembership(ctx, workspaceID, userID)
	}
	now := s.clock()
	m.Status = StatusMember
	m.MemberFrom = &now
	return s.repo.UpdateMembership(ctx, *m)
}

// RemoveMember deletes the target's membership row. The actor must hold
// Owner status. The founding Owner row is exempt; only workspace deletion
// removes it.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, actorID, targetUserID int64) error {
	if err := s.requireOwner(ctx, workspaceID, actorID); err != nil {
		return err
	}
	target, err := s.repo.GetMembership(ctx, workspaceID, targetUserID)
	if err != nil {
		return err
	}
	if target.Status == StatusOwner {
		return fmt.Errorf("workspaces: owner membership cannot be removed: %w", shared.ErrForbidden)
	}
	return s.repo.DeleteMembership(ctx, workspaceID, targetUserID)
}

// Leave is self-service removal; no privilege required, but the founding
// Owner cannot leave their own workspace.
func (s *Service) Leave(ctx context.Context, workspaceID, userID int64) error {
	m, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if m.Status == StatusOwner {
		return fmt.Errorf("workspaces: owner cannot leave: %w", shared.ErrForbidden)
	}
	return s.repo.DeleteMembership(ctx, workspaceID, userID)
}

// ChangeMemberStatus moves a membership between the Member and Invited
// states. Owner is terminal in both directions: it can be neither granted
// nor revoked here.
func (s *Service) ChangeMemberStatus(ctx context.Context, workspaceID, targetUserID int64, status MembershipStatus) error {
	if status == StatusOwner || !status.Valid() {
		return fmt.Errorf("workspaces: status %q not assignable: %w", status, shared.ErrForbidden)
	}
	m, err := s.repo.GetMembership(ctx, workspaceID, targetUserID)
	if err != nil {
		return err
	}
	if m.Status == StatusOwner {
		return fmt.Errorf("workspaces: owner status cannot change: %w", shared.ErrForbidden)
	}
	m.Status = status
	if status == StatusMember && m.MemberFrom == nil {
		now := s.clock()
		m.MemberFrom = &now
	}
	return s.repo.UpdateMembership(ctx, *m)
}

// AddUserToRole links a workspace role to a member. The role must live in
// this workspace and the target must hold a non-invited membership.
func (s *Service) AddUserToRole(ctx context.Context, workspaceID, userID int64, roleName string) error {
	role, err := s.roles.GetRoleInfo(ctx, roles.WorkspaceScope(workspaceID), roleName)
	if err != nil {
		return err
	}
	m, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if m.Status == StatusInvited {
		return fmt.Errorf("workspaces: invitee cannot hold roles: %w", shared.ErrForbidden)
	}
	return s.repo.AddUserRole(ctx, UserRole{WorkspaceID: workspaceID, UserID: userID, RoleID: role.ID})
}

// RemoveUserFromRole unlinks a workspace role from a member.
func (s *Service) RemoveUserFromRole(ctx context.Context, workspaceID, userID int64, roleName string) error {
	role, err := s.roles.GetRoleInfo(ctx, roles.WorkspaceScope(workspaceID), roleName)
	if err != nil {
		return err
	}
	return s.repo.RemoveUserRole(ctx, UserRole{WorkspaceID: workspaceID, UserID: userID, RoleID: role.ID})
}

// Memberships returns all membership rows of the workspace.
func (s *Service) Memberships(ctx context.Context, workspaceID int64) ([]Membership, error) {
	return s.repo.ListMemberships(ctx, workspaceID)
}

// HasMembership reports whether any membership row exists for the pair,
// regardless of status. The gate's default policy uses this.
func (s *Service) HasMembership(ctx context.Context, workspaceID, userID int64) (bool, error) {
	_, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsOwner reports whether the user holds the Owner membership.
func (s *Service) IsOwner(ctx context.Context, workspaceID, userID int64) (bool, error) {
	m, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Status == StatusOwner, nil
}

func (s *Service) requireOwner(ctx context.Context, workspaceID, actorID int64) error {
	owner, err := s.IsOwner(ctx, workspaceID, actorID)
	if err != nil {
		return err
	}
	if !owner {
		return fmt.Errorf("workspaces: owner status required: %w", shared.ErrForbidden)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID int64, subject, body, kind string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, userID, subject, body, kind); err != nil && s.logger != nil {
		s.logger.Warn("notification dispatch failed",
			slog.Int64("user_id", userID), slog.String("kind", kind), slog.Any("error", err))
	}
}
