// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh token persistence.
var (
	// ErrRefreshTokenNotFound is returned when no row matches the lookup.
	// This is deliberately distinct from ErrRefreshTokenExpired.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenExpired is returned by the manager when a found token is
	// past its expiry.
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
)

// RefreshTokenRepository persists the one-live-token-per-account records.
// Expiry is NOT evaluated here; the manager checks it against the injected
// clock so tests can simulate time.
type RefreshTokenRepository interface {
	// Create persists a new refresh token row.
	Create(ctx context.Context, token *entity.RefreshToken) error

	// FindByToken retrieves a row by its opaque secret value.
	FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error)

	// FindByID retrieves a row by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.RefreshToken, error)

	// FindByUserID retrieves the live row for an account, if any.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.RefreshToken, error)

	// DeleteByID removes a row by ID. Returns ErrRefreshTokenNotFound when
	// nothing was deleted.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteByUserID removes the account's row. Deleting when no row exists
	// is a no-op, which makes revocation idempotent.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error

	// DeleteAll removes every refresh token (global revocation).
	DeleteAll(ctx context.Context) error

	// DeleteExpiredBefore removes rows whose expiry is before the cutoff and
	// reports how many were removed. Used by periodic sweeps; expiry remains
	// enforced at use time regardless.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
