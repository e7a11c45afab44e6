package models

import (
	"time"

	"github.com/sitegrid-dev/sitegrid/internal/types"
)

// NotificationDelivery is one row per (notification, channel). The composite
// unique index is the idempotency guard for concurrent dispatch paths; a row
// is immutable once its status is sent or abandoned.
type NotificationDelivery struct {
	BaseModel

	NotificationID uint                 `gorm:"not null;uniqueIndex:idx_notification_channel"`
	Channel        types.Channel        `gorm:"not null;uniqueIndex:idx_notification_channel"`
	Status         types.DeliveryStatus `gorm:"not null;default:pending;index"`
	Attempts       int                  `gorm:"not null;default:0"`
	LastAttemptAt  *time.Time
	LastError      string

	// Relationships
	Notification Notification `gorm:"foreignKey:NotificationID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
