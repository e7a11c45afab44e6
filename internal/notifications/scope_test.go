package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitegrid-dev/sitegrid/internal/lookup"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// fakeDirectory serves resolver tests without a database.
type fakeDirectory struct {
	users    map[uint]lookup.UserInfo
	projects map[uint]lookup.ProjectInfo
	access   map[uint][]uint // userID -> projectIDs
}

func (f *fakeDirectory) UserByID(id uint) (*lookup.UserInfo, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (f *fakeDirectory) ActiveUsersByRole(role types.Role, projectID *uint) ([]lookup.UserInfo, error) {
	var result []lookup.UserInfo
	for _, user := range f.users {
		if user.Role != role || !user.Active {
			continue
		}
		if projectID != nil && !f.hasAccess(user.ID, *projectID) {
			continue
		}
		result = append(result, user)
	}
	return result, nil
}

func (f *fakeDirectory) AllActiveUserIDs() ([]uint, error) {
	var ids []uint
	for _, user := range f.users {
		if user.Active {
			ids = append(ids, user.ID)
		}
	}
	return ids, nil
}

func (f *fakeDirectory) ProjectByID(id uint) (*lookup.ProjectInfo, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	return &project, nil
}

func (f *fakeDirectory) HasProjectAccess(userID, projectID uint) (bool, error) {
	return f.hasAccess(userID, projectID), nil
}

func (f *fakeDirectory) hasAccess(userID, projectID uint) bool {
	for _, id := range f.access[userID] {
		if id == projectID {
			return true
		}
	}
	return false
}

func staffDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[uint]lookup.UserInfo{
			1: {ID: 1, Role: types.RoleManager, Active: true},
			2: {ID: 2, Role: types.RoleSupervisor, Active: true},
			3: {ID: 3, Role: types.RoleAdmin, Active: true},
			4: {ID: 4, Role: types.RoleAdmin, Active: true},
			5: {ID: 5, Role: types.RoleAdmin, Active: false},
			6: {ID: 6, Role: types.RoleWorker, Active: true},
		},
		projects: map[uint]lookup.ProjectInfo{
			10: {ID: 10, ManagerID: 1, SupervisorID: 2},
			11: {ID: 11, ManagerID: 1, SupervisorID: 1},
		},
		access: map[uint][]uint{
			3: {10},
		},
	}
}

func TestResolveSingleUser(t *testing.T) {
	resolver := NewResolver(staffDirectory())

	ids, err := resolver.Resolve(Audience{Scope: types.ScopeUser, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids)
}

func TestResolveSingleUserUnknownOrInactive(t *testing.T) {
	resolver := NewResolver(staffDirectory())

	ids, err := resolver.Resolve(Audience{Scope: types.ScopeUser, UserID: 99})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = resolver.Resolve(Audience{Scope: types.ScopeUser, UserID: 5})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolveProjectStaff(t *testing.T) {
	resolver := NewResolver(staffDirectory())
	projectID := uint(10)

	ids, err := resolver.Resolve(Audience{Scope: types.ScopeProjectStaff, ProjectID: &projectID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, ids)
}

func TestResolveProjectStaffDedupes(t *testing.T) {
	resolver := NewResolver(staffDirectory())
	projectID := uint(11)

	// Manager and supervisor lookups land on the same user.
	ids, err := resolver.Resolve(Audience{Scope: types.ScopeProjectStaff, ProjectID: &projectID})
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids)
}

func TestResolveProjectStaffUnknownProject(t *testing.T) {
	resolver := NewResolver(staffDirectory())
	projectID := uint(404)

	_, err := resolver.Resolve(Audience{Scope: types.ScopeProjectStaff, ProjectID: &projectID})
	assert.ErrorIs(t, err, ErrUnknownProject)
}

func TestResolveRoleClassExcludesInactive(t *testing.T) {
	resolver := NewResolver(staffDirectory())

	// Two active admins, one inactive.
	ids, err := resolver.Resolve(Audience{Scope: types.ScopeRole, Role: types.RoleAdmin})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{3, 4}, ids)
}

func TestResolveRoleClassRestrictedToProject(t *testing.T) {
	resolver := NewResolver(staffDirectory())
	projectID := uint(10)

	ids, err := resolver.Resolve(Audience{Scope: types.ScopeRole, Role: types.RoleAdmin, ProjectID: &projectID})
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, ids)
}

func TestResolveRoleClassEmptyIsNotAnError(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{users: map[uint]lookup.UserInfo{}})

	ids, err := resolver.Resolve(Audience{Scope: types.ScopeRole, Role: types.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolveBroadcast(t *testing.T) {
	resolver := NewResolver(staffDirectory())

	ids, err := resolver.Resolve(Audience{Scope: types.ScopeBroadcast})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2, 3, 4, 6}, ids)
}

func TestResolveInvalidScope(t *testing.T) {
	resolver := NewResolver(staffDirectory())

	_, err := resolver.Resolve(Audience{Scope: "everyone"})
	assert.ErrorIs(t, err, ErrValidation)
}
