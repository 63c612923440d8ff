package store

import (
	"time"

	"gorm.io/datatypes"
)

// SessionModel is the GORM row for a persisted session.
type SessionModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    int            `gorm:"not null;index"`
	Record    datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	ExpiresAt *time.Time     `gorm:"index"`
}

func (SessionModel) TableName() string { return "storefront_sessions" }
