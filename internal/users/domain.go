package users

import "time"

// Status enumerates user account states.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// User represents a user account.
type User struct {
	ID              int64
	Email           string
	Name            string
	PasswordHash    string
	Status          Status
	IsPlatformAdmin bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Per-user option names consulted by the membership engine.
const (
	OptionAllowInvitations = "allow_invitations"
)

// optionDefaults holds the documented default for each known option.
// Absence of a stored value resolves to the default.
var optionDefaults = map[string]string{
	OptionAllowInvitations: "true",
}
