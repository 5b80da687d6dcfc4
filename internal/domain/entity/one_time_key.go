// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// KeyPurpose tags a one-time key with the flow it unlocks.
type KeyPurpose string

const (
	// KeyPurposeActivation marks keys issued for account activation.
	KeyPurposeActivation KeyPurpose = "ACCOUNT_ACTIVATION"
	// KeyPurposeReset marks keys issued for password reset.
	KeyPurposeReset KeyPurpose = "PASSWORD_RESET"
)

// IsValid checks if the KeyPurpose is a known value.
func (p KeyPurpose) IsValid() bool {
	switch p {
	case KeyPurposeActivation, KeyPurposeReset:
		return true
	default:
		return false
	}
}

// OneTimeKey is a random single-use value gating account activation or a
// password reset. Validity is derived from CreatedAt and the purpose-specific
// TTL at consumption time; it is never cached. Consumption stamps ConsumedAt
// in the same transaction as the state change it authorizes, so a key can
// never be spent twice; the row is retained so a re-presented key can report
// the state it already produced.
type OneTimeKey struct {
	ID         uuid.UUID  // The unique ID for this key record.
	UserID     uuid.UUID  // Links this key to the Identity it belongs to.
	KeyValue   string     // Random opaque value, UUID-shaped (>=122 bits of entropy).
	CreatedAt  time.Time  // Instant the key was issued; TTL counts from here.
	ConsumedAt *time.Time // Set once when the key is spent; nil while live.
	Purpose    KeyPurpose // Which flow this key unlocks.
}

// Age returns how long the key has existed at the given instant.
func (k *OneTimeKey) Age(now time.Time) time.Duration {
	return now.Sub(k.CreatedAt)
}

// Consumed reports whether the key has already been spent.
func (k *OneTimeKey) Consumed() bool {
	return k.ConsumedAt != nil
}
