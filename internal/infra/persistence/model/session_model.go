package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table.
type SessionModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	StartedAt  time.Time  `gorm:"not null;index"`
	EndedAt    *time.Time `gorm:"index"`
	RemoteAddr string     `gorm:"type:varchar(64)"`
	UserAgent  string     `gorm:"type:varchar(512)"`
	Status     string     `gorm:"type:varchar(20);not null"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
