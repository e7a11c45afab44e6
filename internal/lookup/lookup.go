// Package lookup gives the notification engine read-only access to the user
// and project modules. The engine depends on the Directory interface only, so
// the business modules' own types never leak into it.
package lookup

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sitegrid-dev/sitegrid/internal/models"
	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// UserInfo is the slice of a user the engine is allowed to see.
type UserInfo struct {
	ID     uint
	Name   string
	Email  string
	Role   types.Role
	Active bool
}

// ProjectInfo is the slice of a project the engine is allowed to see.
type ProjectInfo struct {
	ID           uint
	Name         string
	ManagerID    uint
	SupervisorID uint
}

// Directory is the read-only boundary into the user and project modules.
type Directory interface {
	// UserByID returns the user or (nil, nil) if no such user exists.
	UserByID(id uint) (*UserInfo, error)
	// ActiveUsersByRole lists active users of the given role class. A
	// non-nil projectID restricts the result to users with access to that
	// project.
	ActiveUsersByRole(role types.Role, projectID *uint) ([]UserInfo, error)
	// AllActiveUserIDs lists every active user id.
	AllActiveUserIDs() ([]uint, error)
	// ProjectByID returns the project or (nil, nil) if no such project
	// exists.
	ProjectByID(id uint) (*ProjectInfo, error)
	// HasProjectAccess reports whether the user is the project's manager,
	// its supervisor, or one of its members.
	HasProjectAccess(userID, projectID uint) (bool, error)
}

// GormDirectory implements Directory against the shared database.
type GormDirectory struct {
	conn *gorm.DB
}

func NewGormDirectory(conn *gorm.DB) *GormDirectory {
	return &GormDirectory{conn: conn}
}

func (d *GormDirectory) UserByID(id uint) (*UserInfo, error) {
	var user models.User

	if err := d.conn.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &UserInfo{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   types.Role(user.Role),
		Active: user.Active,
	}, nil
}

func (d *GormDirectory) ActiveUsersByRole(role types.Role, projectID *uint) ([]UserInfo, error) {
	var users []models.User

	if err := d.conn.Where("role = ? AND active = ?", string(role), true).Find(&users).Error; err != nil {
		return nil, err
	}

	infos := make([]UserInfo, 0, len(users))

	for _, user := range users {
		if projectID != nil {
			ok, err := d.HasProjectAccess(user.ID, *projectID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		infos = append(infos, UserInfo{
			ID:     user.ID,
			Name:   user.Name,
			Email:  user.Email,
			Role:   types.Role(user.Role),
			Active: user.Active,
		})
	}

	return infos, nil
}

func (d *GormDirectory) AllActiveUserIDs() ([]uint, error) {
	var ids []uint

	if err := d.conn.Model(&models.User{}).Where("active = ?", true).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

func (d *GormDirectory) ProjectByID(id uint) (*ProjectInfo, error) {
	var project models.Project

	if err := d.conn.Where("id = ?", id).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ProjectInfo{
		ID:           project.ID,
		Name:         project.Name,
		ManagerID:    project.ManagerID,
		SupervisorID: project.SupervisorID,
	}, nil
}

func (d *GormDirectory) HasProjectAccess(userID, projectID uint) (bool, error) {
	var project models.Project

	if err := d.conn.Where("id = ?", projectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if project.ManagerID == userID || project.SupervisorID == userID {
		return true, nil
	}

	var count int64

	err := d.conn.Model(&models.ProjectMembership{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
