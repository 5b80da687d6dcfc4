// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the core entity in the system, representing a unique account.
// An identity carries two independent status flags: Enabled is flipped by
// administrators, Activated is flipped once by the owner through an
// activation key. Both must be true before the account can log in.
type Identity struct {
	ID           uuid.UUID // The Global Unique Identifier (GUID) for the account.
	Nickname     string    // Unique display handle, also usable as a login identifier. Never contains '@'.
	Email        string    // The account's primary contact email, also usable as a login identifier.
	PasswordHash string    // Bcrypt hash of the current password. Never exposed outside the domain.
	Enabled      bool      // Administrative switch. A disabled account is rejected before its password is checked.
	Activated    bool      // Owner-side switch, set once through an activation key.
	Language     string    // Preferred language tag for outbound messages, e.g. "en" or "zh-TW".
	Roles        Roles     // The granted role set, embedded into issued access tokens.
	CreatedAt    time.Time // Timestamp of when this account was created.
	UpdatedAt    time.Time // Timestamp of the last modification to this account's data.
}

// CanLogin reports whether both status switches permit authentication.
func (i *Identity) CanLogin() bool {
	return i.Enabled && i.Activated
}
