package workspaces

import "time"

// MembershipStatus enumerates membership states. Owner is terminal and set
// only when the workspace is created; it is never reachable via invitation.
type MembershipStatus string

const (
	StatusOwner   MembershipStatus = "owner"
	StatusMember  MembershipStatus = "member"
	StatusInvited MembershipStatus = "invited"
)

// Valid reports whether the status is one of the defined states.
func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusOwner, StatusMember, StatusInvited:
		return true
	}
	return false
}

// Workspace is a tenant boundary isolating roles, membership and resources.
type Workspace struct {
	ID          int64
	OwnerID     int64
	Name        string
	Description string
	CreateDate  time.Time
	IsPublic    bool
	Active      bool
	Order       int
}

// Membership links a user to a workspace. Exactly one row exists per
// (workspace, user) pair; MemberFrom stays nil until an invitation is
// accepted.
type Membership struct {
	WorkspaceID int64
	UserID      int64
	Status      MembershipStatus
	InviteDate  time.Time
	MemberFrom  *time.Time
}

// UserRole links a (workspace, user, role) triple. A user may hold any
// number of workspace roles simultaneously.
type UserRole struct {
	WorkspaceID int64
	UserID      int64
	RoleID      int64
}
