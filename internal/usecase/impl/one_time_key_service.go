package impl

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"gatekeeper/config"
	deliverycontext "gatekeeper/internal/delivery/context"
	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultActivationKeyTTL = time.Hour * 24
	defaultResetKeyTTL      = time.Hour * 2
)

// oneTimeKeyService implements the OneTimeKeyUsecase interface.
// Consumption stamps the key row's consumed_at column; the RowsAffected guard
// on that update is what makes a key single-use under concurrency. The row is
// kept so a re-presented key reports the outcome its first use produced.
type oneTimeKeyService struct {
	txManager repository.TransactionManager
	keyGen    service.KeyGenerator
	hasher    service.PasswordHasher
	clock     service.Clock
	publisher service.EventPublisher
	logger    *slog.Logger

	activationTTL time.Duration
	resetTTL      time.Duration
}

// OneTimeKeyServiceParams holds dependencies for oneTimeKeyService, injected by Fx.
type OneTimeKeyServiceParams struct {
	fx.In

	Config    *config.Config
	TxManager repository.TransactionManager
	KeyGen    service.KeyGenerator
	Hasher    service.PasswordHasher
	Clock     service.Clock
	Publisher service.EventPublisher
	Logger    *slog.Logger
}

// NewOneTimeKeyService is the constructor for oneTimeKeyService.
func NewOneTimeKeyService(params OneTimeKeyServiceParams) usecase.OneTimeKeyUsecase {
	activationTTL := params.Config.Keys.ActivationTTL
	if activationTTL <= 0 {
		activationTTL = defaultActivationKeyTTL
	}
	resetTTL := params.Config.Keys.ResetTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetKeyTTL
	}

	return &oneTimeKeyService{
		txManager:     params.TxManager,
		keyGen:        params.KeyGen,
		hasher:        params.Hasher,
		clock:         params.Clock,
		publisher:     params.Publisher,
		logger:        params.Logger,
		activationTTL: activationTTL,
		resetTTL:      resetTTL,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *oneTimeKeyService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Issue creates a key of the given purpose for the account, replacing any
// outstanding key of the same purpose.
func (srv *oneTimeKeyService) Issue(ctx context.Context, userID uuid.UUID, purpose entity.KeyPurpose) (*entity.OneTimeKey, error) {
	if !purpose.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("unknown key purpose")
	}

	var issued *entity.OneTimeKey

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		keyRepo := repoFactory.OneTimeKeyRepo()

		// 1. Verify the account exists.
		if _, err := repoFactory.IdentityRepo().FindByID(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to find identity for key issue")
		}

		// 2. Displace any outstanding key of this purpose.
		if err := keyRepo.DeleteByUserAndPurpose(ctx, userID, purpose); err != nil {
			return errors.Wrap(err, "failed to displace previous key")
		}

		// 3. Store the new key.
		key := &entity.OneTimeKey{
			UserID:    userID,
			KeyValue:  srv.keyGen.NewKey(),
			CreatedAt: srv.clock.Now(),
			Purpose:   purpose,
		}
		if err := keyRepo.Create(ctx, key); err != nil {
			return errors.Wrap(err, "failed to store one-time key")
		}
		issued = key

		return nil
	})

	if err != nil {
		srv.log(ctx).Error("Failed to execute key issue transaction",
			slog.Any("user_id", userID), slog.String("purpose", string(purpose)), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute key issue transaction")
	}
	srv.log(ctx).Debug("One-time key issued",
		slog.Any("user_id", userID), slog.String("purpose", string(purpose)))

	return issued, nil
}

// VerifyNotExpired reports whether the key is still inside its
// purpose-specific lifetime.
func (srv *oneTimeKeyService) VerifyNotExpired(key *entity.OneTimeKey) error {
	ttl := srv.activationTTL
	if key.Purpose == entity.KeyPurposeReset {
		ttl = srv.resetTTL
	}

	if key.Age(srv.clock.Now()) > ttl {
		return domainerrors.ErrOneTimeKeyExpired
	}

	return nil
}

// ConsumeForActivation spends an activation key. The checks run in a fixed
// order: shape, row lookup, value compare, consumed state, temp password,
// expiry, activation state. Only then does the account flip to activated and
// the key row get stamped consumed, all in one transaction.
func (srv *oneTimeKeyService) ConsumeForActivation(ctx context.Context, keyID uuid.UUID, keyValue, tempPassword, newPassword string) error {
	if !srv.keyGen.ValidShape(keyValue) {
		return domainerrors.ErrOneTimeKeyInvalid
	}
	if newPassword != "" {
		if err := srv.hasher.ValidateStrength(newPassword); err != nil {
			return err
		}
	}

	var activated *entity.Identity

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		keyRepo := repoFactory.OneTimeKeyRepo()
		identityRepo := repoFactory.IdentityRepo()

		key, err := srv.loadAndCheckKey(ctx, keyRepo, keyID, keyValue, entity.KeyPurposeActivation)
		if err != nil {
			return err
		}

		identity, err := identityRepo.FindByID(ctx, key.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to find identity for activation")
		}

		// A spent key reports what its first use produced. Checked before the
		// temp password because that first use may have replaced the hash.
		if key.Consumed() {
			if identity.Activated {
				return domainerrors.ErrAlreadyActivated
			}

			return domainerrors.ErrAlreadyConsumed
		}

		// The temporary password handed out at registration has to match
		// before the key may activate the account.
		if tempPassword != "" && !srv.hasher.Check(identity.PasswordHash, tempPassword) {
			return domainerrors.ErrBadCredentials
		}

		if err := srv.VerifyNotExpired(key); err != nil {
			return err
		}

		if identity.Activated {
			return domainerrors.ErrAlreadyActivated
		}

		if err := identityRepo.SetActivated(ctx, identity.ID, true); err != nil {
			return errors.Wrap(err, "failed to activate identity")
		}

		if newPassword != "" {
			hash, err := srv.hasher.Hash(newPassword)
			if err != nil {
				return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
			}
			if err := identityRepo.UpdatePassword(ctx, identity.ID, hash); err != nil {
				return errors.Wrap(err, "failed to set password during activation")
			}
		}

		if err := srv.markKeyConsumed(ctx, keyRepo, key.ID); err != nil {
			return err
		}
		activated = identity

		return nil
	})

	if err != nil {
		srv.log(ctx).Warn("Activation key consume failed",
			slog.Any("key_id", keyID), slog.Any("error", err))

		return err
	}
	srv.log(ctx).Info("Account activated", slog.Any("key_id", keyID))

	publishAuthEvent(ctx, srv.publisher, srv.clock, srv.log(ctx), service.EventAccountActivated, activated, "")

	return nil
}

// ConsumeForReset spends a reset key: the same validation sequence, then the
// password hash is replaced, the live refresh token revoked, and the key row
// stamped consumed, all in one transaction.
func (srv *oneTimeKeyService) ConsumeForReset(ctx context.Context, keyID uuid.UUID, keyValue, newPassword string) error {
	if !srv.keyGen.ValidShape(keyValue) {
		return domainerrors.ErrOneTimeKeyInvalid
	}
	if err := srv.hasher.ValidateStrength(newPassword); err != nil {
		return err
	}

	var reset *entity.Identity

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		keyRepo := repoFactory.OneTimeKeyRepo()
		identityRepo := repoFactory.IdentityRepo()

		key, err := srv.loadAndCheckKey(ctx, keyRepo, keyID, keyValue, entity.KeyPurposeReset)
		if err != nil {
			return err
		}
		if key.Consumed() {
			return domainerrors.ErrAlreadyConsumed
		}

		identity, err := identityRepo.FindByID(ctx, key.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to find identity for reset")
		}

		if err := srv.VerifyNotExpired(key); err != nil {
			return err
		}

		hash, err := srv.hasher.Hash(newPassword)
		if err != nil {
			return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
		}
		if err := identityRepo.UpdatePassword(ctx, identity.ID, hash); err != nil {
			return errors.Wrap(err, "failed to replace password")
		}

		// A password reset invalidates the standing session credential.
		if err := repoFactory.RefreshTokenRepo().DeleteByUserID(ctx, identity.ID); err != nil {
			return errors.Wrap(err, "failed to revoke refresh token after reset")
		}

		if err := srv.markKeyConsumed(ctx, keyRepo, key.ID); err != nil {
			return err
		}
		reset = identity

		return nil
	})

	if err != nil {
		srv.log(ctx).Warn("Reset key consume failed",
			slog.Any("key_id", keyID), slog.Any("error", err))

		return err
	}
	srv.log(ctx).Info("Password reset completed", slog.Any("key_id", keyID))

	publishAuthEvent(ctx, srv.publisher, srv.clock, srv.log(ctx), service.EventPasswordResetCompleted, reset, "")

	return nil
}

// FindByID returns the key row with the given ID.
func (srv *oneTimeKeyService) FindByID(ctx context.Context, id uuid.UUID) (*entity.OneTimeKey, error) {
	var key *entity.OneTimeKey

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.OneTimeKeyRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		key = found

		return nil
	})

	if err != nil {
		return nil, err
	}

	return key, nil
}

// PurgeCreatedBefore bulk-deletes keys of one purpose issued before the cutoff.
func (srv *oneTimeKeyService) PurgeCreatedBefore(ctx context.Context, purpose entity.KeyPurpose, cutoff time.Time) (int64, error) {
	var purged int64

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		count, err := repoFactory.OneTimeKeyRepo().DeleteCreatedBefore(ctx, purpose, cutoff)
		if err != nil {
			return errors.Wrap(err, "failed to purge one-time keys")
		}
		purged = count

		return nil
	})

	if err != nil {
		return 0, errors.Wrap(err, "failed to execute key purge transaction")
	}

	srv.log(ctx).Info("Purged one-time keys",
		slog.String("purpose", string(purpose)), slog.Int64("count", purged))

	return purged, nil
}

// loadAndCheckKey fetches the key row and validates the presented value and
// purpose. The value compare is constant-time so a presented value leaks
// nothing about the stored one.
func (srv *oneTimeKeyService) loadAndCheckKey(ctx context.Context, keyRepo repository.OneTimeKeyRepository, keyID uuid.UUID, keyValue string, purpose entity.KeyPurpose) (*entity.OneTimeKey, error) {
	key, err := keyRepo.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrOneTimeKeyNotFound) {
			return nil, domainerrors.ErrOneTimeKeyNotFound
		}

		return nil, errors.Wrap(err, "failed to find one-time key")
	}

	if subtle.ConstantTimeCompare([]byte(key.KeyValue), []byte(keyValue)) != 1 {
		return nil, domainerrors.ErrOneTimeKeyInvalid
	}
	if key.Purpose != purpose {
		return nil, domainerrors.ErrOneTimeKeyInvalid
	}

	return key, nil
}

// markKeyConsumed stamps the key row as spent. Zero rows affected means a
// concurrent request spent the key after our lookup, so this consume loses
// the race.
func (srv *oneTimeKeyService) markKeyConsumed(ctx context.Context, keyRepo repository.OneTimeKeyRepository, keyID uuid.UUID) error {
	if err := keyRepo.MarkConsumed(ctx, keyID, srv.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrOneTimeKeyNotFound) {
			return domainerrors.ErrAlreadyConsumed
		}

		return errors.Wrap(err, "failed to mark key consumed")
	}

	return nil
}
