package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/shared"
)

// Service implements role management for one scope family. The same
// service serves both the global scope and every workspace scope; each
// operation takes an explicit Scope.
type Service struct {
	repo    RepositoryPort
	catalog catalog.Provider
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, provider catalog.Provider) *Service {
	return &Service{repo: repo, catalog: provider}
}

// catalogItems returns the securable catalog governing the scope.
func (s *Service) catalogItems(scope Scope) []catalog.Item {
	if scope.IsGlobal() {
		return s.catalog.GlobalItems()
	}
	return s.catalog.WorkspaceItems()
}

// GetAllRoles returns every role in scope with its permissions.
func (s *Service) GetAllRoles(ctx context.Context, scope Scope) ([]Role, error) {
	return s.repo.ListRoles(ctx, scope)
}

// FindByName resolves a role by case-sensitive exact name match within
// scope. Returns (nil, nil) when absent.
func (s *Service) FindByName(ctx context.Context, scope Scope, name string) (*Role, error) {
	role, err := s.repo.FindByName(ctx, scope, name)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// GetRoleInfo resolves a role by name, failing with shared.ErrNotFound
// when absent.
func (s *Service) GetRoleInfo(ctx context.Context, scope Scope, name string) (Role, error) {
	role, err := s.repo.FindByName(ctx, scope, name)
	if err != nil {
		return Role{}, err
	}
	return *role, nil
}

// AddRole persists a new role. Fails with shared.ErrDuplicateName when the
// name already resolves within the target scope.
func (s *Service) AddRole(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	if role.Kind == "" {
		role.Kind = KindNormal
	}
	existing, err := s.FindByName(ctx, role.Scope(), role.Name)
	if err != nil {
		return Role{}, err
	}
	if existing != nil {
		return Role{}, fmt.Errorf("roles: add %q: %w", role.Name, shared.ErrDuplicateName)
	}
	return s.repo.Create(ctx, role)
}

// ModifyRole renames a role and updates its description, preserving id,
// kind and permission set. A rename into a name already used in scope
// fails with shared.ErrDuplicateName.
func (s *Service) ModifyRole(ctx context.Context, scope Scope, name string, updated Role) error {
	role, err := s.repo.FindByName(ctx, scope, name)
	if err != nil {
		return err
	}
	newName := strings.TrimSpace(updated.Name)
	if newName == "" {
		newName = role.Name
	}
	if newName != role.Name {
		other, err := s.FindByName(ctx, scope, newName)
		if err != nil {
			return err
		}
		if other != nil {
			return fmt.Errorf("roles: rename to %q: %w", newName, shared.ErrDuplicateName)
		}
	}
	return s.repo.Update(ctx, role.ID, newName, updated.Description)
}

// DeleteRole removes a role and cascades its permissions. Existing
// user-role assignments are left orphaned; they contribute zero
// permissions once the role row is gone.
func (s *Service) DeleteRole(ctx context.Context, scope Scope, name string) error {
	role, err := s.repo.FindByName(ctx, scope, name)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, role.ID)
}

// HasPermission reports whether the named role grants the operation.
// Administrator-kind roles grant every pair, including pairs absent from
// the catalog.
func (s *Service) HasPermission(ctx context.Context, scope Scope, roleName, item, operation string) (bool, error) {
	role, err := s.repo.FindByName(ctx, scope, roleName)
	if err != nil {
		return false, err
	}
	return role.Grants(item, operation), nil
}

// RolesHavingPermission returns every role in scope granting the
// operation, administrator-kind roles included.
func (s *Service) RolesHavingPermission(ctx context.Context, scope Scope, item, operation string) ([]Role, error) {
	all, err := s.repo.ListRoles(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []Role
	for _, role := range all {
		if role.Grants(item, operation) {
			out = append(out, role)
		}
	}
	return out, nil
}

// RoleSecurableItemsStatus projects the scope's full catalog with each
// operation's Status flag set true iff the role holds that permission.
// The projection is what a permission-matrix editor renders.
func (s *Service) RoleSecurableItemsStatus(ctx context.Context, scope Scope, roleName string) ([]catalog.Item, error) {
	role, err := s.repo.FindByName(ctx, scope, roleName)
	if err != nil {
		return nil, err
	}
	granted := make(map[Permission]struct{}, len(role.Permissions))
	for _, p := range role.Permissions {
		granted[p] = struct{}{}
	}
	items := s.catalogItems(scope)
	for i := range items {
		for j := range items[i].Operations {
			_, ok := granted[Permission{Item: items[i].ShortName, Operation: items[i].Operations[j].ShortName}]
			items[i].Operations[j].Status = ok
		}
	}
	return items, nil
}

// SetRoleSecurableItemsStatus full-replaces the role's permission set from
// the submitted item list: one permission per operation flagged true.
// Operations absent from the scope's catalog are ignored, making the call
// a declarative set, and reapplying the same list is idempotent.
func (s *Service) SetRoleSecurableItemsStatus(ctx context.Context, scope Scope, roleName string, items []catalog.Item) error {
	role, err := s.repo.FindByName(ctx, scope, roleName)
	if err != nil {
		return err
	}
	master := s.catalogItems(scope)
	seen := make(map[Permission]struct{})
	var perms []Permission
	for _, it := range items {
		for _, op := range it.Operations {
			if !op.Status {
				continue
			}
			if !catalog.Contains(master, it.ShortName, op.ShortName) {
				continue
			}
			p := Permission{Item: it.ShortName, Operation: op.ShortName}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return s.repo.ReplacePermissions(ctx, role.ID, perms)
}

// AssignGlobalRole links a global role to a user by role name.
func (s *Service) AssignGlobalRole(ctx context.Context, userID int64, roleName string) error {
	role, err := s.repo.FindByName(ctx, GlobalScope(), roleName)
	if err != nil {
		return err
	}
	return s.repo.AssignGlobal(ctx, userID, role.ID)
}

// RemoveGlobalRole unlinks a global role from a user by role name.
func (s *Service) RemoveGlobalRole(ctx context.Context, userID int64, roleName string) error {
	role, err := s.repo.FindByName(ctx, GlobalScope(), roleName)
	if err != nil {
		return err
	}
	return s.repo.RemoveGlobal(ctx, userID, role.ID)
}

// RolesForUser returns the user's global roles.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.RolesForUser(ctx, userID)
}

// RolesForWorkspaceUser returns the roles the user holds in the workspace.
func (s *Service) RolesForWorkspaceUser(ctx context.Context, workspaceID, userID int64) ([]Role, error) {
	return s.repo.RolesForWorkspaceUser(ctx, workspaceID, userID)
}
