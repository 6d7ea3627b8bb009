package shared

import "errors"

var (
	// ErrNotFound indicates a named entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName indicates a uniqueness violation on a role or workspace name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrAlreadyMember indicates the invitee already holds a membership row.
	ErrAlreadyMember = errors.New("already a member")
	// ErrInviteeOptOut indicates the invitee's preference disallows invitations.
	ErrInviteeOptOut = errors.New("invitee opted out of invitations")
	// ErrForbidden indicates the actor lacks the required privilege.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated indicates the session gate failed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
