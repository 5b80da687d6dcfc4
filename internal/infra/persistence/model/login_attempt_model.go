package model

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttemptModel mirrors the 'login_attempts' table. UserID is nullable
// and carries no foreign key so attempt history survives account removal.
type LoginAttemptModel struct {
	ID          int64      `gorm:"primary_key;autoIncrement"`
	UserID      *uuid.UUID `gorm:"type:uuid;index"`
	Email       string     `gorm:"type:varchar(255);index"`
	Nickname    string     `gorm:"type:varchar(100);index"`
	AttemptedAt time.Time  `gorm:"not null;index"`
	RemoteAddr  string     `gorm:"type:varchar(64);index"`
	UserAgent   string     `gorm:"type:varchar(512)"`
	Outcome     string     `gorm:"type:varchar(20);not null"`
}

// TableName explicitly sets the table name for GORM.
func (LoginAttemptModel) TableName() string {
	return "login_attempts"
}

// FailedLoginAttemptModel mirrors the 'failed_login_attempts' table. Rows are
// written when the submitted identifier matched no account, so there is no
// user reference at all.
type FailedLoginAttemptModel struct {
	ID          int64     `gorm:"primary_key;autoIncrement"`
	Email       string    `gorm:"type:varchar(255);index"`
	Nickname    string    `gorm:"type:varchar(100);index"`
	AttemptedAt time.Time `gorm:"not null;index"`
	RemoteAddr  string    `gorm:"type:varchar(64);index"`
	UserAgent   string    `gorm:"type:varchar(512)"`
}

// TableName explicitly sets the table name for GORM.
func (FailedLoginAttemptModel) TableName() string {
	return "failed_login_attempts"
}
