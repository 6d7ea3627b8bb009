// Package authz hosts the permission decision function and the request
// gate built on it. Denial is always a boolean false, never an error used
// for control flow; storage errors convert to deny and are logged.
package authz

import (
	"context"
	"log/slog"

	"github.com/atriumhq/atrium/internal/roles"
	"github.com/atriumhq/atrium/internal/users"
)

// UserDirectory resolves public profiles.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// SessionValidator is the unconditional first gate of every decision.
type SessionValidator interface {
	Exists(ctx context.Context, userID int64, sessionID string) (bool, error)
}

// RoleSource supplies a user's effective roles with permissions loaded.
type RoleSource interface {
	RolesForUser(ctx context.Context, userID int64) ([]roles.Role, error)
	RolesForWorkspaceUser(ctx context.Context, workspaceID, userID int64) ([]roles.Role, error)
}

// MembershipSource answers workspace ownership and membership existence.
type MembershipSource interface {
	IsOwner(ctx context.Context, workspaceID, userID int64) (bool, error)
	HasMembership(ctx context.Context, workspaceID, userID int64) (bool, error)
}

// Checker is the central permission decision function.
type Checker struct {
	users       UserDirectory
	sessions    SessionValidator
	roles       RoleSource
	memberships MembershipSource
	logger      *slog.Logger
}

// NewChecker wires the checker's collaborators.
func NewChecker(dir UserDirectory, sessions SessionValidator, roleSource RoleSource, memberships MembershipSource, logger *slog.Logger) *Checker {
	return &Checker{
		users:       dir,
		sessions:    sessions,
		roles:       roleSource,
		memberships: memberships,
		logger:      logger,
	}
}

// Check decides whether the user, authenticated by the session, may perform
// the operation on the securable item, optionally within a workspace.
// The returned bool is false whenever err is non-nil; callers must never
// read an errored result as a conditional allow.
func (c *Checker) Check(ctx context.Context, userID int64, sessionID, item, operation string, workspaceID *int64) (bool, error) {
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		return false, c.deny("resolve user", userID, err)
	}
	if user.Status != users.StatusActive {
		return false, nil
	}

	live, err := c.sessions.Exists(ctx, userID, sessionID)
	if err != nil {
		return false, c.deny("validate session", userID, err)
	}
	if !live {
		return false, nil
	}

	if workspaceID == nil {
		if user.IsPlatformAdmin {
			return true, nil
		}
		granted, err := c.roles.RolesForUser(ctx, userID)
		if err != nil {
			return false, c.deny("load global roles", userID, err)
		}
		return anyGrants(granted, item, operation), nil
	}

	owner, err := c.memberships.IsOwner(ctx, *workspaceID, userID)
	if err != nil {
		return false, c.deny("resolve ownership", userID, err)
	}
	if owner {
		return true, nil
	}
	granted, err := c.roles.RolesForWorkspaceUser(ctx, *workspaceID, userID)
	if err != nil {
		return false, c.deny("load workspace roles", userID, err)
	}
	return anyGrants(granted, item, operation), nil
}

// anyGrants is a pure OR over the role set; a single match suffices and no
// explicit deny rule exists anywhere in the model.
func anyGrants(granted []roles.Role, item, operation string) bool {
	for i := range granted {
		if granted[i].Grants(item, operation) {
			return true
		}
	}
	return false
}

func (c *Checker) deny(stage string, userID int64, err error) error {
	if c.logger != nil {
		c.logger.Error("authorization check failed",
			slog.String("stage", stage), slog.Int64("user_id", userID), slog.Any("error", err))
	}
	return err
}
