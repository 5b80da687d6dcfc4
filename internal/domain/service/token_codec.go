// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

import (
	"time"

	"github.com/google/uuid"
)

// Claims is the verified content of an access token: who it was issued to
// and which roles it carries. The wire layout of the token is an
// implementation detail of the codec; subject and roles must survive an
// Issue/Verify round trip without loss.
type Claims struct {
	UserID    uuid.UUID
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec encodes and decodes signed, expiring bearer tokens. It is a
// pure function of the signing secret and the clock: verification never
// touches storage, which also means a still-valid token does not reflect a
// concurrent account deactivation. Callers must re-check account flags
// against the credential store on sensitive operations.
type TokenCodec interface {
	// Issue creates a signed token for the subject with the given roles and TTL.
	Issue(subjectID uuid.UUID, roles []string, ttl time.Duration) (string, error)

	// Verify checks signature and expiry and returns the embedded claims.
	// Failures are classified: domainerrors.ErrTokenEmpty, ErrTokenMalformed,
	// ErrTokenSignature, ErrTokenExpired.
	Verify(token string) (*Claims, error)

	// AccessTokenTTL returns the configured lifetime for access tokens.
	AccessTokenTTL() time.Duration
}
