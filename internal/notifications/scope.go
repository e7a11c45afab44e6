package notifications

import (
	"fmt"

	"github.com/sitegrid-dev/sitegrid/internal/lookup"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// Audience is an abstract audience descriptor. Exactly one of the optional
// fields is meaningful per scope: UserID for ScopeUser, ProjectID for
// ScopeProjectStaff, Role (optionally plus ProjectID) for ScopeRole.
type Audience struct {
	Scope     types.Scope
	UserID    uint
	ProjectID *uint
	Role      types.Role
}

// Resolver expands audience descriptors into concrete user-id sets using the
// read-only directory. Resolution has no side effects; empty audiences are a
// no-op for callers, never an error.
type Resolver struct {
	dir lookup.Directory
}

func NewResolver(dir lookup.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the deduplicated, active user ids the audience denotes.
// An unresolvable project yields ErrUnknownProject; an empty role class or an
// unknown/inactive single user yields an empty set.
func (r *Resolver) Resolve(audience Audience) ([]uint, error) {
	switch audience.Scope {
	case types.ScopeUser:
		return r.resolveUser(audience.UserID)
	case types.ScopeProjectStaff:
		if audience.ProjectID == nil {
			return nil, fmt.Errorf("%w: project staff scope requires a project", ErrValidation)
		}
		return r.resolveProjectStaff(*audience.ProjectID)
	case types.ScopeRole:
		if !audience.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, audience.Role)
		}
		return r.resolveRole(audience.Role, audience.ProjectID)
	case types.ScopeBroadcast:
		return r.dir.AllActiveUserIDs()
	}

	return nil, fmt.Errorf("%w: unknown scope %q", ErrValidation, audience.Scope)
}

func (r *Resolver) resolveUser(userID uint) ([]uint, error) {
	user, err := r.dir.UserByID(userID)
	if err != nil {
		return nil, err
	}

	if user == nil || !user.Active {
		return nil, nil
	}

	return []uint{user.ID}, nil
}

// resolveProjectStaff returns the project's manager and supervisor. The two
// lookups can land on the same user; the set dedupes.
func (r *Resolver) resolveProjectStaff(projectID uint) ([]uint, error) {
	project, err := r.dir.ProjectByID(projectID)
	if err != nil {
		return nil, err
	}

	if project == nil {
		return nil, fmt.Errorf("%w: project %d", ErrUnknownProject, projectID)
	}

	set := newUserSet()

	for _, id := range []uint{project.ManagerID, project.SupervisorID} {
		user, err := r.dir.UserByID(id)
		if err != nil {
			return nil, err
		}
		if user != nil && user.Active {
			set.add(user.ID)
		}
	}

	return set.ids, nil
}

func (r *Resolver) resolveRole(role types.Role, projectID *uint) ([]uint, error) {
	if projectID != nil {
		project, err := r.dir.ProjectByID(*projectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("%w: project %d", ErrUnknownProject, *projectID)
		}
	}

	users, err := r.dir.ActiveUsersByRole(role, projectID)
	if err != nil {
		return nil, err
	}

	set := newUserSet()

	for _, user := range users {
		set.add(user.ID)
	}

	return set.ids, nil
}

// userSet is an insertion-ordered id set.
type userSet struct {
	seen map[uint]bool
	ids  []uint
}

func newUserSet() *userSet {
	return &userSet{seen: make(map[uint]bool)}
}

func (s *userSet) add(id uint) {
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.ids = append(s.ids, id)
}
