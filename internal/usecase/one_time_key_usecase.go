package usecase

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// OneTimeKeyUsecase manages single-use keys for account activation and
// password reset. A key is consumed by stamping its row's consumed_at, so a
// key can be spent exactly once no matter how many requests race on it;
// re-presenting a spent key reports the outcome its first use produced.
type OneTimeKeyUsecase interface {
	// Issue creates a key of the given purpose for the account, replacing
	// any outstanding key of the same purpose.
	Issue(ctx context.Context, userID uuid.UUID, purpose entity.KeyPurpose) (*entity.OneTimeKey, error)

	// VerifyNotExpired reports whether the key is still inside its
	// purpose-specific lifetime.
	VerifyNotExpired(key *entity.OneTimeKey) error

	// ConsumeForActivation spends an activation key: validates shape, value,
	// consumed state, expiry, and activation state, then atomically activates
	// the account, optionally sets a new password, and marks the key
	// consumed. A non-empty tempPassword must match the account's stored
	// password hash.
	ConsumeForActivation(ctx context.Context, keyID uuid.UUID, keyValue, tempPassword, newPassword string) error

	// ConsumeForReset spends a reset key: same validation, then atomically
	// replaces the password hash, revokes the account's refresh token, and
	// marks the key consumed.
	ConsumeForReset(ctx context.Context, keyID uuid.UUID, keyValue, newPassword string) error

	// FindByID returns the key row with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.OneTimeKey, error)

	// PurgeCreatedBefore bulk-deletes keys of one purpose issued before the
	// cutoff and reports how many were removed.
	PurgeCreatedBefore(ctx context.Context, purpose entity.KeyPurpose, cutoff time.Time) (int64, error)
}
