package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/roles"
	"github.com/atriumhq/atrium/internal/shared"
	"github.com/atriumhq/atrium/internal/users"
)

type stubDirectory struct {
	users    map[int64]*users.User
	getError error
}

func (s *stubDirectory) Get(_ context.Context, id int64) (*users.User, error) {
	if s.getError != nil {
		return nil, s.getError
	}
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

type stubSessions struct {
	live      map[string]int64 // sessionID -> userID
	existsErr error
}

func (s *stubSessions) Exists(_ context.Context, userID int64, sessionID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	owner, ok := s.live[sessionID]
	return ok && owner == userID, nil
}

type stubRoles struct {
	global  map[int64][]roles.Role
	perWS   map[[2]int64][]roles.Role
	loadErr error
}

func (s *stubRoles) RolesForUser(_ context.Context, userID int64) ([]roles.Role, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.global[userID], nil
}

func (s *stubRoles) RolesForWorkspaceUser(_ context.Context, workspaceID, userID int64) ([]roles.Role, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.perWS[[2]int64{workspaceID, userID}], nil
}

type stubMemberships struct {
	owners   map[[2]int64]bool
	members  map[[2]int64]bool
	ownerErr error
}

func (s *stubMemberships) IsOwner(_ context.Context, workspaceID, userID int64) (bool, error) {
	if s.ownerErr != nil {
		return false, s.ownerErr
	}
	return s.owners[[2]int64{workspaceID, userID}], nil
}

func (s *stubMemberships) HasMembership(_ context.Context, workspaceID, userID int64) (bool, error) {
	return s.members[[2]int64{workspaceID, userID}], nil
}

type fixture struct {
	directory   *stubDirectory
	sessions    *stubSessions
	roles       *stubRoles
	memberships *stubMemberships
	checker     *Checker
}

func newFixture() *fixture {
	f := &fixture{
		directory:   &stubDirectory{users: make(map[int64]*users.User)},
		sessions:    &stubSessions{live: make(map[string]int64)},
		roles:       &stubRoles{global: make(map[int64][]roles.Role), perWS: make(map[[2]int64][]roles.Role)},
		memberships: &stubMemberships{owners: make(map[[2]int64]bool), members: make(map[[2]int64]bool)},
	}
	f.checker = NewChecker(f.directory, f.sessions, f.roles, f.memberships, slog.Default())
	return f
}

func (f *fixture) addUser(id int64, status users.Status, platformAdmin bool) {
	f.directory.users[id] = &users.User{ID: id, Status: status, IsPlatformAdmin: platformAdmin}
}

func (f *fixture) addSession(id string, userID int64) {
	f.sessions.live[id] = userID
}

func wsID(id int64) *int64 { return &id }

func TestCheckGlobalRoleGrant(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.roles.global[1] = []roles.Role{{
		Name: "Viewer", Kind: roles.KindNormal,
		Permissions: []roles.Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}},
	}}

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemUser, catalog.OpView, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.checker.Check(context.Background(), 1, "s1", catalog.ItemUser, catalog.OpDelete, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckNoRolesDenied(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemUser, catalog.OpView, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAdministratorKindRole(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.roles.global[1] = []roles.Role{{Name: "Root", Kind: roles.KindAdministrator}}

	// The administrator kind grants pairs the catalog never defined.
	ok, err := f.checker.Check(context.Background(), 1, "s1", "ghost-item", "ghost-op", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckPlatformAdminBypass(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, true)
	f.addSession("s1", 1)

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemRole, catalog.OpDelete, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckDeadSessionDeniesPlatformAdmin(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, true)

	// Session gate runs before any privilege shortcut.
	ok, err := f.checker.Check(context.Background(), 1, "gone", catalog.ItemRole, catalog.OpView, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckSessionOwnedByAnotherUser(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addUser(2, users.StatusActive, true)
	f.addSession("s2", 2)

	ok, err := f.checker.Check(context.Background(), 1, "s2", catalog.ItemUser, catalog.OpView, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckInactiveUserDenied(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusSuspended, true)
	f.addSession("s1", 1)

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemUser, catalog.OpView, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckUnknownUserDenied(t *testing.T) {
	f := newFixture()
	f.addSession("s1", 99)

	ok, err := f.checker.Check(context.Background(), 99, "s1", catalog.ItemUser, catalog.OpView, nil)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestCheckWorkspaceOwnerOverride(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.memberships.owners[[2]int64{7, 1}] = true

	// Owners pass every workspace check without holding roles.
	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemWorkspace, catalog.OpDelete, wsID(7))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckWorkspaceRoleGrant(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.roles.perWS[[2]int64{7, 1}] = []roles.Role{{
		Name: "Editor", Kind: roles.KindNormal,
		Permissions: []roles.Permission{{Item: catalog.ItemWorkspace, Operation: catalog.OpModify}},
	}}

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemWorkspace, catalog.OpModify, wsID(7))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.checker.Check(context.Background(), 1, "s1", catalog.ItemWorkspace, catalog.OpDelete, wsID(7))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckWorkspaceRolesDoNotLeakAcrossWorkspaces(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.roles.perWS[[2]int64{7, 1}] = []roles.Role{{
		Name: "Editor", Kind: roles.KindNormal,
		Permissions: []roles.Permission{{Item: catalog.ItemWorkspace, Operation: catalog.OpModify}},
	}}

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemWorkspace, catalog.OpModify, wsID(8))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckOrMergeAcrossRoles(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.roles.global[1] = []roles.Role{
		{Name: "A", Kind: roles.KindNormal, Permissions: []roles.Permission{{Item: catalog.ItemUser, Operation: catalog.OpView}}},
		{Name: "B", Kind: roles.KindNormal, Permissions: []roles.Permission{{Item: catalog.ItemRole, Operation: catalog.OpView}}},
	}

	// A single match across the union suffices.
	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemRole, catalog.OpView, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckStorageErrorDenies(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.roles.loadErr = errors.New("connection reset")

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemUser, catalog.OpView, nil)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestCheckSessionStoreErrorDenies(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, true)
	f.sessions.existsErr = errors.New("redis down")

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemUser, catalog.OpView, nil)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestCheckOwnershipErrorDenies(t *testing.T) {
	f := newFixture()
	f.addUser(1, users.StatusActive, false)
	f.addSession("s1", 1)
	f.memberships.ownerErr = errors.New("connection reset")

	ok, err := f.checker.Check(context.Background(), 1, "s1", catalog.ItemWorkspace, catalog.OpView, wsID(7))
	require.Error(t, err)
	assert.False(t, ok)
}
