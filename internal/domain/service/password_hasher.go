package service

// PasswordHasher hashes and verifies user passwords using a one-way,
// salted scheme. Plaintext passwords never leave this boundary.
type PasswordHasher interface {
	// Hash derives a storable hash from a plaintext password.
	Hash(password string) (string, error)

	// Check reports whether the plaintext matches the stored hash.
	Check(hash string, password string) bool

	// ValidateStrength rejects passwords that fail the minimum policy.
	// Returns domainerrors.ErrPasswordStrength on violation.
	ValidateStrength(password string) error
}
