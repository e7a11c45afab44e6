package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// Notification is one row per (event, recipient). Type, context and recipient
// never change after creation; only read state and delivery-linked fields do.
type Notification struct {
	gorm.Model

	UserID     uint                   `gorm:"not null;index"`
	Type       types.NotificationType `gorm:"not null"`
	Context    types.Context          `gorm:"not null;index"`
	Priority   types.Priority         `gorm:"not null"`
	Title      string                 `gorm:"not null"`
	Message    string                 `gorm:"not null"`
	ActionLink string
	ActionText string
	ActionIcon string
	Scope      types.Scope `gorm:"not null"`
	TargetRole types.Role
	ProjectID  *uint `gorm:"index"`
	EntityID   *uint
	Data       datatypes.JSON `gorm:"type:jsonb"`
	Read       bool           `gorm:"not null;default:false;index"`
	ReadAt     *time.Time

	// Relationships
	User       User                   `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Project    *Project               `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	Deliveries []NotificationDelivery `gorm:"foreignKey:NotificationID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
