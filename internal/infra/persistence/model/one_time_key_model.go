package model

import (
	"time"

	"github.com/google/uuid"
)

// OneTimeKeyModel mirrors the 'one_time_keys' table. A NULL consumed_at means
// the key is live; consumption stamps the column and keeps the row.
type OneTimeKeyModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_one_time_keys_user_purpose"`
	Purpose    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_one_time_keys_user_purpose"`
	KeyValue   string    `gorm:"type:varchar(255);unique;not null"`
	CreatedAt  time.Time
	ConsumedAt *time.Time `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (OneTimeKeyModel) TableName() string {
	return "one_time_keys"
}
