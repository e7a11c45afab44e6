package models

import "gorm.io/gorm"

type Project struct {
	gorm.Model

	Name         string `gorm:"not null"`
	Description  string
	ManagerID    uint `gorm:"not null;index"`
	SupervisorID uint `gorm:"not null;index"`

	// Relationships
	Manager            User                `gorm:"foreignKey:ManagerID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Supervisor         User                `gorm:"foreignKey:SupervisorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
