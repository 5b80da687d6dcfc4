package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshTokenModel mirrors the 'refresh_tokens' table. The unique index on
// user_id enforces the one-live-token-per-user rule at the storage level.
type RefreshTokenModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Token      string    `gorm:"type:varchar(255);unique;not null"`
	ExpiryDate time.Time `gorm:"not null"`
	CreatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (RefreshTokenModel) TableName() string {
	return "refresh_tokens"
}
