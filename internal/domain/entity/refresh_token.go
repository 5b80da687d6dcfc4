// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken represents the single long-lived credential a user holds for
// obtaining new access tokens without re-entering a password.
// The system keeps at most one live record per account; issuing a new one
// always replaces the previous record.
type RefreshToken struct {
	ID         uuid.UUID // The unique ID for this specific refresh token record.
	UserID     uuid.UUID // Links this token to the Identity it belongs to.
	Token      string    // The opaque random secret handed to the client. Unique across all rows.
	ExpiryDate time.Time // The exact time when this refresh token becomes invalid.
	CreatedAt  time.Time // Timestamp of when this token was issued.
}

// ExpiredAt reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiryDate)
}
