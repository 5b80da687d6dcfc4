package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

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

// accountService implements the AccountUsecase interface.
type accountService struct {
	txManager repository.TransactionManager
	hasher    service.PasswordHasher
	keys      usecase.OneTimeKeyUsecase
	tokens    usecase.RefreshTokenUsecase
	publisher service.EventPublisher
	clock     service.Clock
	logger    *slog.Logger
}

// AccountServiceParams holds dependencies for accountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
	Keys      usecase.OneTimeKeyUsecase
	Tokens    usecase.RefreshTokenUsecase
	Publisher service.EventPublisher
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewAccountService is the constructor for accountService.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	return &accountService{
		txManager: params.TxManager,
		hasher:    params.Hasher,
		keys:      params.Keys,
		tokens:    params.Tokens,
		publisher: params.Publisher,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a deactivated account and issues its activation key.
func (srv *accountService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	srv.log(ctx).Info("Starting registration", slog.String("email", input.Email))

	// A nickname containing '@' would make the login identifier ambiguous.
	if strings.Contains(input.Nickname, "@") {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("nickname must not contain '@'")
	}
	if err := srv.hasher.ValidateStrength(input.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	newIdentity := &entity.Identity{
		Nickname:     input.Nickname,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Enabled:      true,
		Activated:    false,
		Language:     input.Language,
		Roles:        entity.Roles{entity.RoleUser},
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.IdentityRepo().Create(ctx, newIdentity); err != nil {
			if errors.Is(err, repository.ErrDuplicateIdentity) {
				return domainerrors.ErrConflict.WrapMessage("email or nickname already registered")
			}

			return errors.WithStack(err)
		}

		return nil
	})

	if err != nil {
		srv.log(ctx).Error("Failed to execute registration transaction",
			slog.String("email", input.Email), slog.Any("error", err))

		return nil, err
	}

	// The activation key rides out in the registration event so a mailer
	// can deliver it.
	activationKey, err := srv.keys.Issue(ctx, newIdentity.ID, entity.KeyPurposeActivation)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue activation key")
	}

	srv.publishAccountEvent(ctx, service.EventAccountRegistered, newIdentity, activationKey.KeyValue)

	srv.log(ctx).Info("Account registered", slog.Any("user_id", newIdentity.ID))

	return &usecase.RegisterOutput{
		Identity:      newIdentity,
		ActivationKey: activationKey,
	}, nil
}

// RequestPasswordReset issues a reset key for the account behind the email.
// An unknown email is accepted and only logged, so the endpoint cannot be
// used to probe for registered addresses.
func (srv *accountService) RequestPasswordReset(ctx context.Context, email string) error {
	var identity *entity.Identity

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.IdentityRepo().FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		identity = found

		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			srv.log(ctx).Info("Password reset requested for unknown email")

			return nil
		}

		return errors.Wrap(err, "failed to find identity for reset request")
	}

	resetKey, err := srv.keys.Issue(ctx, identity.ID, entity.KeyPurposeReset)
	if err != nil {
		return errors.Wrap(err, "failed to issue reset key")
	}

	srv.publishAccountEvent(ctx, service.EventPasswordResetRequested, identity, resetKey.KeyValue)

	srv.log(ctx).Info("Password reset key issued", slog.Any("user_id", identity.ID))

	return nil
}

// GetByID returns the account with the given ID.
func (srv *accountService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Identity, error) {
	var identity *entity.Identity

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.IdentityRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		identity = found

		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, domainerrors.ErrIdentityNotFound
		}

		return nil, errors.Wrap(err, "failed to find identity")
	}

	return identity, nil
}

// UpdateNickname replaces the account's nickname.
func (srv *accountService) UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error {
	if strings.Contains(nickname, "@") {
		return domainerrors.ErrValidationFailed.WrapMessage("nickname must not contain '@'")
	}

	return srv.updateField(ctx, id, func(repo repository.IdentityRepository) error {
		return repo.UpdateNickname(ctx, id, nickname)
	})
}

// UpdateEmail replaces the account's email address.
func (srv *accountService) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return srv.updateField(ctx, id, func(repo repository.IdentityRepository) error {
		return repo.UpdateEmail(ctx, id, email)
	})
}

// ChangePassword verifies the current password and stores a new hash.
func (srv *accountService) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	if err := srv.hasher.ValidateStrength(newPassword); err != nil {
		return err
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		identityRepo := repoFactory.IdentityRepo()

		identity, err := identityRepo.FindByID(ctx, id)
		if err != nil {
			return errors.Wrap(err, "failed to find identity")
		}

		if !srv.hasher.Check(identity.PasswordHash, currentPassword) {
			return domainerrors.ErrBadCredentials
		}

		hash, err := srv.hasher.Hash(newPassword)
		if err != nil {
			return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
		}

		return identityRepo.UpdatePassword(ctx, id, hash)
	})

	if err != nil {
		srv.log(ctx).Warn("Password change failed", slog.Any("user_id", id), slog.Any("error", err))

		return err
	}
	srv.log(ctx).Info("Password changed", slog.Any("user_id", id))

	return nil
}

// UpdateLanguage replaces the preferred language tag.
func (srv *accountService) UpdateLanguage(ctx context.Context, id uuid.UUID, language string) error {
	return srv.updateField(ctx, id, func(repo repository.IdentityRepository) error {
		return repo.UpdateLanguage(ctx, id, language)
	})
}

// SetEnabled flips the administrative status flag. Disabling an account also
// revokes its live refresh token so the standing credential dies with it.
func (srv *accountService) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	err := srv.updateField(ctx, id, func(repo repository.IdentityRepository) error {
		return repo.SetEnabled(ctx, id, enabled)
	})
	if err != nil {
		return err
	}

	if !enabled {
		if err := srv.tokens.Revoke(ctx, id); err != nil {
			return errors.Wrap(err, "failed to revoke refresh token for disabled account")
		}
	}

	srv.log(ctx).Info("Account enabled flag updated",
		slog.Any("user_id", id), slog.Bool("enabled", enabled))

	return nil
}

// SetRoles replaces the granted role set.
func (srv *accountService) SetRoles(ctx context.Context, id uuid.UUID, roles entity.Roles) error {
	return srv.updateField(ctx, id, func(repo repository.IdentityRepository) error {
		return repo.SetRoles(ctx, id, roles)
	})
}

func (srv *accountService) updateField(ctx context.Context, id uuid.UUID, updateFn func(repository.IdentityRepository) error) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return updateFn(repoFactory.IdentityRepo())
	})

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrIdentityNotFound):
			return domainerrors.ErrIdentityNotFound
		case errors.Is(err, repository.ErrDuplicateIdentity):
			return domainerrors.ErrConflict.WrapMessage("email or nickname already registered")
		default:
			return errors.Wrap(err, "failed to update identity")
		}
	}

	return nil
}

// publishAccountEvent emits the event without blocking the caller.
func (srv *accountService) publishAccountEvent(ctx context.Context, eventType string, identity *entity.Identity, keyValue string) {
	publishAuthEvent(ctx, srv.publisher, srv.clock, srv.log(ctx), eventType, identity, keyValue)
}

// publishAuthEvent fires an auth lifecycle event on a detached context so the
// publish outlives the request. Failures are logged, never surfaced: the
// state change the event describes has already committed.
func publishAuthEvent(ctx context.Context, publisher service.EventPublisher, clock service.Clock, logger *slog.Logger, eventType string, identity *entity.Identity, keyValue string) {
	event := &service.AuthEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		Type:       eventType,
		UserID:     identity.ID.String(),
		Email:      identity.Email,
		Nickname:   identity.Nickname,
		KeyValue:   keyValue,
		OccurredAt: clock.Now().UTC().Format(time.RFC3339),
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := publisher.PublishAuthEvent(detached, event); err != nil {
			logger.Warn("Failed to publish auth event",
				slog.String("type", eventType), slog.Any("error", err))
		}
	}()
}
