package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/shared"
)

type mockRepository struct {
	roles       map[int64]*Role
	nextID      int64
	globalLinks map[int64][]int64 // userID -> roleIDs
	wsLinks     map[[2]int64][]int64

	findError error
	listError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       make(map[int64]*Role),
		nextID:      1,
		globalLinks: make(map[int64][]int64),
		wsLinks:     make(map[[2]int64][]int64),
	}
}

func sameScope(role *Role, scope Scope) bool {
	if scope.IsGlobal() {
		return role.WorkspaceID == nil
	}
	return role.WorkspaceID != nil && *role.WorkspaceID == *scope.WorkspaceID()
}

func (m *mockRepository) ListRoles(_ context.Context, scope Scope) ([]Role, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	var out []Role
	for _, role := range m.roles {
		if sameScope(role, scope) {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (m *mockRepository) FindByName(_ context.Context, scope Scope, name string) (*Role, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	for _, role := range m.roles {
		if role.Name == name && sameScope(role, scope) {
			copied := *role
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) Create(_ context.Context, role Role) (Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name && sameScope(existing, role.Scope()) {
			return Role{}, shared.ErrDuplicateName
		}
	}
	role.ID = m.nextID
	m.nextID++
	stored := role
	m.roles[role.ID] = &stored
	return role, nil
}

func (m *mockRepository) Update(_ context.Context, id int64, name, description string) error {
	role, ok := m.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	role.Name = name
	role.Description = description
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *mockRepository) ReplacePermissions(_ context.Context, roleID int64, perms []Permission) error {
	role, ok := m.roles[roleID]
	if !ok {
		return shared.ErrNotFound
	}
	role.Permissions = append([]Permission(nil), perms...)
	return nil
}

func (m *mockRepository) AssignGlobal(_ context.Context, userID, roleID int64) error {
	m.globalLinks[userID] = append(m.globalLinks[userID], roleID)
	return nil
}

func (m *mockRepository) RemoveGlobal(_ context.Context, userID, roleID int64) error {
	links := m.globalLinks[userID]
	for i, id := range links {
		if id == roleID {
			m.globalLinks[userID] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockRepository) RolesForUser(_ context.Context, userID int64) ([]Role, error) {
	var out []Role
	for _, id := range m.globalLinks[userID] {
		if role, ok := m.roles[id]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (m *mockRepository) RolesForWorkspaceUser(_ context.Context, workspaceID, userID int64) ([]Role, error) {
	var out []Role
	for _, id := range m.wsLinks[[2]int64{workspaceID, userID}] {
		if role, ok := m.roles[id]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo, catalog.Base()), repo
}

func TestAddRole(t *testing.T) {
	svc, _ := newTestService()

	role, err := svc.AddRole(context.Background(), Role{Name: "Editor", Description: "Can edit"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), role.ID)
	assert.Equal(t, "Editor", role.Name)
	assert.Equal(t, KindNormal, role.Kind)
	assert.Nil(t, role.WorkspaceID)
}

func TestAddRoleTrimsName(t *testing.T) {
	svc, _ := newTestService()

	role, err := svc.AddRole(context.Background(), Role{Name: "  Editor  "})
	require.NoError(t, err)
	assert.Equal(t, "Editor", role.Name)
}

func TestAddRoleEmptyName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "   "})
	require.Error(t, err)
}

func TestAddRoleDuplicateName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	_, err = svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrDuplicateName))
}

func TestAddRoleSameNameDifferentScope(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	ws := int64(7)
	_, err = svc.AddRole(context.Background(), Role{Name: "Editor", WorkspaceID: &ws})
	require.NoError(t, err)

	other := int64(8)
	_, err = svc.AddRole(context.Background(), Role{Name: "Editor", WorkspaceID: &other})
	require.NoError(t, err)
}

func TestFindByNameAbsent(t *testing.T) {
	svc, _ := newTestService()

	role, err := svc.FindByName(context.Background(), GlobalScope(), "Ghost")
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestFindByNameCaseSensitive(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	role, err := svc.FindByName(context.Background(), GlobalScope(), "editor")
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestGetRoleInfoAbsent(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestModifyRoleRename(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.AddRole(context.Background(), Role{Name: "Editor", Description: "old"})
	require.NoError(t, err)

	err = svc.ModifyRole(context.Background(), GlobalScope(), "Editor", Role{Name: "Author", Description: "new"})
	require.NoError(t, err)

	role, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Author")
	require.NoError(t, err)
	assert.Equal(t, created.ID, role.ID)
	assert.Equal(t, "new", role.Description)

	gone, err := svc.FindByName(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestModifyRoleRenameConflict(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)
	_, err = svc.AddRole(context.Background(), Role{Name: "Author"})
	require.NoError(t, err)

	err = svc.ModifyRole(context.Background(), GlobalScope(), "Editor", Role{Name: "Author"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrDuplicateName))
}

func TestModifyRoleBlankNameKeepsOld(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	err = svc.ModifyRole(context.Background(), GlobalScope(), "Editor", Role{Name: "  ", Description: "updated"})
	require.NoError(t, err)

	role, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.Equal(t, "updated", role.Description)
}

func TestDeleteRole(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplacePermissions(context.Background(), created.ID,
		[]Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}))

	err = svc.DeleteRole(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)

	role, err := svc.FindByName(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestDeleteRoleAbsent(t *testing.T) {
	svc, _ := newTestService()

	err := svc.DeleteRole(context.Background(), GlobalScope(), "Ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestHasPermission(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.AddRole(context.Background(), Role{Name: "Viewer"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplacePermissions(context.Background(), created.ID,
		[]Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}))

	ok, err := svc.HasPermission(context.Background(), GlobalScope(), "Viewer", catalog.ItemUser, catalog.OpView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(context.Background(), GlobalScope(), "Viewer", catalog.ItemUser, catalog.OpDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionAdministratorKind(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Root", Kind: KindAdministrator})
	require.NoError(t, err)

	ok, err := svc.HasPermission(context.Background(), GlobalScope(), "Root", catalog.ItemUser, catalog.OpDelete)
	require.NoError(t, err)
	assert.True(t, ok)

	// Administrator kind also passes for pairs the catalog never defined.
	ok, err = svc.HasPermission(context.Background(), GlobalScope(), "Root", "ghost-item", "ghost-op")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRolesHavingPermission(t *testing.T) {
	svc, repo := newTestService()

	viewer, err := svc.AddRole(context.Background(), Role{Name: "Viewer"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplacePermissions(context.Background(), viewer.ID,
		[]Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}))

	_, err = svc.AddRole(context.Background(), Role{Name: "Root", Kind: KindAdministrator})
	require.NoError(t, err)

	_, err = svc.AddRole(context.Background(), Role{Name: "Empty"})
	require.NoError(t, err)

	granted, err := svc.RolesHavingPermission(context.Background(), GlobalScope(), catalog.ItemUser, catalog.OpView)
	require.NoError(t, err)
	require.Len(t, granted, 2)

	names := []string{granted[0].Name, granted[1].Name}
	assert.Contains(t, names, "Viewer")
	assert.Contains(t, names, "Root")
}

func TestRoleSecurableItemsStatus(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.AddRole(context.Background(), Role{Name: "Viewer"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplacePermissions(context.Background(), created.ID,
		[]Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}))

	items, err := svc.RoleSecurableItemsStatus(context.Background(), GlobalScope(), "Viewer")
	require.NoError(t, err)
	require.Len(t, items, len(catalog.Base().GlobalItems()))

	for _, it := range items {
		for _, op := range it.Operations {
			want := it.ShortName == catalog.ItemUser && op.ShortName == catalog.OpView
			assert.Equal(t, want, op.Status, "%s:%s", it.ShortName, op.ShortName)
		}
	}
}

func TestSetRoleSecurableItemsStatus(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	submitted := []catalog.Item{{
		ShortName: catalog.ItemUser,
		Operations: []catalog.Operation{
			{ShortName: catalog.OpView, Status: true},
			{ShortName: catalog.OpModify, Status: true},
			{ShortName: catalog.OpDelete, Status: false},
		},
	}}

	err = svc.SetRoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor", submitted)
	require.NoError(t, err)

	role, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Permission{
		{Item: catalog.ItemUser, Operation: catalog.OpView},
		{Item: catalog.ItemUser, Operation: catalog.OpModify},
	}, role.Permissions)
}

func TestSetRoleSecurableItemsStatusReplaces(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, repo.ReplacePermissions(context.Background(), created.ID,
		[]Permission{{Item: catalog.ItemRole, Operation: catalog.OpView}}))

	submitted := []catalog.Item{{
		ShortName: catalog.ItemUser,
		Operations: []catalog.Operation{
			{ShortName: catalog.OpView, Status: true},
		},
	}}

	err = svc.SetRoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor", submitted)
	require.NoError(t, err)

	role, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.Equal(t, []Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}, role.Permissions)
}

func TestSetRoleSecurableItemsStatusIgnoresUnknown(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	submitted := []catalog.Item{
		{
			ShortName: "ghost-item",
			Operations: []catalog.Operation{
				{ShortName: catalog.OpView, Status: true},
			},
		},
		{
			ShortName: catalog.ItemUser,
			Operations: []catalog.Operation{
				{ShortName: "ghost-op", Status: true},
				{ShortName: catalog.OpView, Status: true},
				{ShortName: catalog.OpView, Status: true}, // duplicate submission
			},
		},
	}

	err = svc.SetRoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor", submitted)
	require.NoError(t, err)

	role, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.Equal(t, []Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}, role.Permissions)
}

func TestSetRoleSecurableItemsStatusIdempotent(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	submitted := []catalog.Item{{
		ShortName: catalog.ItemUser,
		Operations: []catalog.Operation{
			{ShortName: catalog.OpView, Status: true},
		},
	}}

	require.NoError(t, svc.SetRoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor", submitted))
	require.NoError(t, svc.SetRoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor", submitted))

	role, err := svc.GetRoleInfo(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 1)
}

func TestStatusRoundTrip(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	items, err := svc.RoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	for i := range items {
		for j := range items[i].Operations {
			if items[i].ShortName == catalog.ItemRole {
				items[i].Operations[j].Status = true
			}
		}
	}

	require.NoError(t, svc.SetRoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor", items))

	projected, err := svc.RoleSecurableItemsStatus(context.Background(), GlobalScope(), "Editor")
	require.NoError(t, err)
	for _, it := range projected {
		for _, op := range it.Operations {
			assert.Equal(t, it.ShortName == catalog.ItemRole, op.Status, "%s:%s", it.ShortName, op.ShortName)
		}
	}
}

func TestAssignGlobalRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)

	require.NoError(t, svc.AssignGlobalRole(context.Background(), 42, "Editor"))

	granted, err := svc.RolesForUser(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, "Editor", granted[0].Name)

	require.NoError(t, svc.RemoveGlobalRole(context.Background(), 42, "Editor"))

	granted, err = svc.RolesForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestAssignGlobalRoleAbsentRole(t *testing.T) {
	svc, _ := newTestService()

	err := svc.AssignGlobalRole(context.Background(), 42, "Ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestDanglingAssignmentGrantsNothing(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.AddRole(context.Background(), Role{Name: "Editor"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignGlobalRole(context.Background(), 42, "Editor"))

	// Deleting the role leaves the assignment row behind; it must not
	// surface as an effective role.
	require.NoError(t, repo.Delete(context.Background(), created.ID))

	granted, err := svc.RolesForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestRepositoryErrorPropagates(t *testing.T) {
	svc, repo := newTestService()
	repo.findError = errors.New("connection reset")

	_, err := svc.HasPermission(context.Background(), GlobalScope(), "Viewer", catalog.ItemUser, catalog.OpView)
	require.Error(t, err)
}
