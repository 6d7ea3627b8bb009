package roles

import "time"

// Kind tags a role's privilege class. Administrator-kind roles pass every
// permission check in their scope without holding explicit permissions.
type Kind string

const (
	KindNormal        Kind = "normal"
	KindAdministrator Kind = "administrator"
)

// Scope identifies where a role lives: the global scope or one workspace.
type Scope struct {
	workspaceID *int64
}

// GlobalScope returns the process-wide role scope.
func GlobalScope() Scope {
	return Scope{}
}

// WorkspaceScope returns the scope for one workspace.
func WorkspaceScope(workspaceID int64) Scope {
	return Scope{workspaceID: &workspaceID}
}

// IsGlobal reports whether the scope is the global one.
func (s Scope) IsGlobal() bool {
	return s.workspaceID == nil
}

// WorkspaceID returns the workspace id, or nil for the global scope.
func (s Scope) WorkspaceID() *int64 {
	if s.workspaceID == nil {
		return nil
	}
	id := *s.workspaceID
	return &id
}

// Permission grants one operation on one securable item to its role.
type Permission struct {
	Item      string `json:"item"`
	Operation string `json:"operation"`
}

// Role is a named bundle of permissions, scoped globally (WorkspaceID nil)
// or to one workspace.
type Role struct {
	ID          int64
	Name        string
	Description string
	WorkspaceID *int64
	Kind        Kind
	Permissions []Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grants reports whether the role allows the operation: either it is an
// administrator-kind role, or it holds the matching permission entry.
func (r *Role) Grants(item, operation string) bool {
	if r.Kind == KindAdministrator {
		return true
	}
	for _, p := range r.Permissions {
		if p.Item == item && p.Operation == operation {
			return true
		}
	}
	return false
}

// Scope returns the scope the role lives in.
func (r *Role) Scope() Scope {
	if r.WorkspaceID == nil {
		return GlobalScope()
	}
	return WorkspaceScope(*r.WorkspaceID)
}
