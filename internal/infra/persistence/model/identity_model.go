package model

import (
	"time"

	"github.com/google/uuid"
)

// IdentityModel mirrors the 'identities' table. PostgreSQL generates UUIDs via uuid_generate_v7().
type IdentityModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v7()"`
	Nickname     string    `gorm:"type:varchar(100);unique;not null"`
	Email        string    `gorm:"type:varchar(255);unique;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Enabled      bool      `gorm:"not null;default:true"`
	Activated    bool      `gorm:"not null;default:false"`
	Language     string    `gorm:"type:varchar(10)"`
	Roles        []string  `gorm:"serializer:json;type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	RefreshTokens []RefreshTokenModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	OneTimeKeys   []OneTimeKeyModel   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Sessions      []SessionModel      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (IdentityModel) TableName() string {
	return "identities"
}
