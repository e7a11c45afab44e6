package models

import "github.com/sitegrid-dev/sitegrid/internal/types"

// NotificationPreference is one row per (user, context), lazily created with
// system defaults the first time a user is addressed in that context.
type NotificationPreference struct {
	BaseModel

	UserID       uint           `gorm:"not null;uniqueIndex:idx_user_context"`
	Context      types.Context  `gorm:"not null;uniqueIndex:idx_user_context"`
	InAppEnabled bool           `gorm:"not null;default:true"`
	EmailEnabled bool           `gorm:"not null;default:false"`
	MinPriority  types.Priority `gorm:"not null;default:1"`
}
