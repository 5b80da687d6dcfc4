// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"time"

	"gatekeeper/config"
	deliverycontext "gatekeeper/internal/delivery/context"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultRefreshTokenTTL = time.Hour * 24 * 7

// refreshTokenManager implements the RefreshTokenUsecase interface.
// The one-live-token-per-account rule is enforced by running every issue as
// delete-then-insert inside one transaction, under a row lock on the account.
type refreshTokenManager struct {
	txManager repository.TransactionManager
	codec     service.TokenCodec
	keyGen    service.KeyGenerator
	clock     service.Clock
	logger    *slog.Logger

	refreshTTL time.Duration
}

// RefreshTokenManagerParams holds dependencies for refreshTokenManager, injected by Fx.
type RefreshTokenManagerParams struct {
	fx.In

	Config    *config.Config
	TxManager repository.TransactionManager
	Codec     service.TokenCodec
	KeyGen    service.KeyGenerator
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewRefreshTokenManager is the constructor for refreshTokenManager.
func NewRefreshTokenManager(params RefreshTokenManagerParams) usecase.RefreshTokenUsecase {
	refreshTTL := params.Config.Token.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	return &refreshTokenManager{
		txManager:  params.TxManager,
		codec:      params.Codec,
		keyGen:     params.KeyGen,
		clock:      params.Clock,
		logger:     params.Logger,
		refreshTTL: refreshTTL,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *refreshTokenManager) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Issue creates a fresh credential pair for the account, replacing any live
// refresh token it held.
func (srv *refreshTokenManager) Issue(ctx context.Context, identity *entity.Identity) (*usecase.RefreshTokenPair, error) {
	var pair *usecase.RefreshTokenPair

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		issued, err := srv.issueLocked(ctx, repoFactory, identity)
		if err != nil {
			return err
		}
		pair = issued

		return nil
	})

	if err != nil {
		srv.log(ctx).Error("Failed to execute token issue transaction",
			slog.Any("user_id", identity.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute token issue transaction")
	}

	return pair, nil
}

// Rotate exchanges a presented refresh token for a fresh pair.
func (srv *refreshTokenManager) Rotate(ctx context.Context, presentedToken string) (*usecase.RefreshTokenPair, error) {
	var (
		pair    *usecase.RefreshTokenPair
		expired bool
	)

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tokenRepo := repoFactory.RefreshTokenRepo()
		identityRepo := repoFactory.IdentityRepo()

		// 1. Look the token up. Unknown stays distinct from expired.
		current, err := tokenRepo.FindByToken(ctx, presentedToken)
		if err != nil {
			return errors.Wrap(err, "failed to find refresh token")
		}

		// 2. A stale token is deleted on sight so it cannot be retried. The
		// callback returns clean so the delete commits; an error here would
		// roll the delete back and retain the expired row.
		if current.ExpiredAt(srv.clock.Now()) {
			if err := tokenRepo.DeleteByID(ctx, current.ID); err != nil {
				return errors.Wrap(err, "failed to delete expired refresh token")
			}
			expired = true

			return nil
		}

		// 3. Reload the account so the new access token carries current roles.
		identity, err := identityRepo.FindByID(ctx, current.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to find identity for rotation")
		}

		issued, err := srv.issueLocked(ctx, repoFactory, identity)
		if err != nil {
			return err
		}
		pair = issued

		return nil
	})

	if err != nil {
		srv.log(ctx).Warn("Refresh token rotation failed", slog.Any("error", err))

		return nil, err
	}
	if expired {
		srv.log(ctx).Warn("Refresh token rotation failed",
			slog.Any("error", repository.ErrRefreshTokenExpired))

		return nil, repository.ErrRefreshTokenExpired
	}

	return pair, nil
}

// Revoke removes the account's live refresh token. A missing token is fine;
// revocation is idempotent.
func (srv *refreshTokenManager) Revoke(ctx context.Context, userID uuid.UUID) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.RefreshTokenRepo().DeleteByUserID(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to delete refresh token")
		}

		return nil
	})

	if err != nil {
		srv.log(ctx).Error("Failed to execute token revoke transaction",
			slog.Any("user_id", userID), slog.Any("error", err))

		return errors.Wrap(err, "failed to execute token revoke transaction")
	}

	return nil
}

// RevokeAll removes every live refresh token.
func (srv *refreshTokenManager) RevokeAll(ctx context.Context) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.RefreshTokenRepo().DeleteAll(ctx); err != nil {
			return errors.Wrap(err, "failed to delete refresh tokens")
		}

		return nil
	})

	if err != nil {
		return errors.Wrap(err, "failed to execute global revoke transaction")
	}

	srv.log(ctx).Info("All refresh tokens revoked")

	return nil
}

// FindByUser returns the account's live token, if any.
func (srv *refreshTokenManager) FindByUser(ctx context.Context, userID uuid.UUID) (*entity.RefreshToken, error) {
	return srv.findOne(ctx, func(repo repository.RefreshTokenRepository) (*entity.RefreshToken, error) {
		return repo.FindByUserID(ctx, userID)
	})
}

// FindByToken returns the record matching an opaque secret value.
func (srv *refreshTokenManager) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	return srv.findOne(ctx, func(repo repository.RefreshTokenRepository) (*entity.RefreshToken, error) {
		return repo.FindByToken(ctx, token)
	})
}

// FindByID returns the record with the given ID.
func (srv *refreshTokenManager) FindByID(ctx context.Context, id uuid.UUID) (*entity.RefreshToken, error) {
	return srv.findOne(ctx, func(repo repository.RefreshTokenRepository) (*entity.RefreshToken, error) {
		return repo.FindByID(ctx, id)
	})
}

// PurgeExpiredBefore bulk-deletes tokens that expired before the instant.
func (srv *refreshTokenManager) PurgeExpiredBefore(ctx context.Context, instant time.Time) (int64, error) {
	var purged int64

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		count, err := repoFactory.RefreshTokenRepo().DeleteExpiredBefore(ctx, instant)
		if err != nil {
			return errors.Wrap(err, "failed to purge expired refresh tokens")
		}
		purged = count

		return nil
	})

	if err != nil {
		return 0, errors.Wrap(err, "failed to execute token purge transaction")
	}

	srv.log(ctx).Info("Purged expired refresh tokens", slog.Int64("count", purged))

	return purged, nil
}

// issueLocked generates and stores a new credential pair inside an already
// open transaction. The row lock on the account serializes concurrent
// issues, so delete-then-insert keeps at most one live token per account.
func (srv *refreshTokenManager) issueLocked(ctx context.Context, repoFactory repository.RepositoryFactory, identity *entity.Identity) (*usecase.RefreshTokenPair, error) {
	identityRepo := repoFactory.IdentityRepo()
	tokenRepo := repoFactory.RefreshTokenRepo()

	if err := identityRepo.AcquireRowLock(ctx, identity.ID); err != nil {
		return nil, errors.Wrap(err, "failed to lock identity for token issue")
	}

	if err := tokenRepo.DeleteByUserID(ctx, identity.ID); err != nil {
		return nil, errors.Wrap(err, "failed to displace previous refresh token")
	}

	accessToken, err := srv.codec.Issue(identity.ID, identity.Roles.ToStrings(), srv.codec.AccessTokenTTL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	now := srv.clock.Now()
	newToken := &entity.RefreshToken{
		UserID:     identity.ID,
		Token:      srv.keyGen.NewKey(),
		ExpiryDate: now.Add(srv.refreshTTL),
		CreatedAt:  now,
	}
	if err := tokenRepo.Create(ctx, newToken); err != nil {
		return nil, errors.Wrap(err, "failed to store refresh token")
	}

	return &usecase.RefreshTokenPair{
		AccessToken:  accessToken,
		RefreshToken: newToken,
	}, nil
}

func (srv *refreshTokenManager) findOne(ctx context.Context, find func(repository.RefreshTokenRepository) (*entity.RefreshToken, error)) (*entity.RefreshToken, error) {
	var token *entity.RefreshToken

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := find(repoFactory.RefreshTokenRepo())
		if err != nil {
			return err
		}
		token = found

		return nil
	})

	if err != nil {
		return nil, err
	}

	return token, nil
}
