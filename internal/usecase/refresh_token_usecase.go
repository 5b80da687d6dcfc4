package usecase

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// RefreshTokenPair is the result of issuing or rotating credentials: the
// short-lived access token plus the stored refresh token record.
type RefreshTokenPair struct {
	AccessToken  string
	RefreshToken *entity.RefreshToken
}

// RefreshTokenUsecase manages the long-lived half of the credential pair.
// An account holds at most one live refresh token; issuing a new one
// displaces its predecessor.
type RefreshTokenUsecase interface {
	// Issue creates a fresh credential pair for the account, replacing any
	// live refresh token it held.
	Issue(ctx context.Context, identity *entity.Identity) (*RefreshTokenPair, error)

	// Rotate exchanges a presented refresh token for a fresh pair. A token
	// past its expiry is deleted and reported as ErrRefreshTokenExpired,
	// distinct from an unknown token.
	Rotate(ctx context.Context, presentedToken string) (*RefreshTokenPair, error)

	// Revoke removes the account's live refresh token. Revoking an account
	// with no token is a no-op.
	Revoke(ctx context.Context, userID uuid.UUID) error

	// RevokeAll removes every live refresh token.
	RevokeAll(ctx context.Context) error

	// FindByUser returns the account's live token, if any.
	FindByUser(ctx context.Context, userID uuid.UUID) (*entity.RefreshToken, error)

	// FindByToken returns the record matching an opaque secret value.
	FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error)

	// FindByID returns the record with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.RefreshToken, error)

	// PurgeExpiredBefore bulk-deletes tokens that expired before the
	// instant and reports how many were removed.
	PurgeExpiredBefore(ctx context.Context, instant time.Time) (int64, error)
}
