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

// authService implements the AuthUsecase interface. It owns the login state
// machine; token minting, key handling, session records, and the attempt
// trail each live behind their own collaborator.
type authService struct {
	txManager repository.TransactionManager
	hasher    service.PasswordHasher
	tokens    usecase.RefreshTokenUsecase
	sessions  usecase.SessionUsecase
	audit     usecase.AuditUsecase
	publisher service.EventPublisher
	clock     service.Clock
	logger    *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
	Tokens    usecase.RefreshTokenUsecase
	Sessions  usecase.SessionUsecase
	Audit     usecase.AuditUsecase
	Publisher service.EventPublisher
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager: params.TxManager,
		hasher:    params.Hasher,
		tokens:    params.Tokens,
		sessions:  params.Sessions,
		audit:     params.Audit,
		publisher: params.Publisher,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Login authenticates an identifier/password pair. The checks run in a
// fixed order: resolve, disabled, password, activated. Every branch leaves
// an attempt record before returning, and the audit write never masks the
// auth outcome.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	srv.log(ctx).Debug("Starting login", slog.String("identifier", input.Identifier))

	// 1. Resolve the identifier. An '@' means email, anything else is a
	// nickname; nicknames cannot contain '@', so the split is unambiguous.
	identity, err := srv.resolveIdentifier(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			srv.recordAttempt(ctx, nil, input, entity.OutcomeFailed)
			srv.publishLoginEvent(ctx, service.EventLoginFailed, nil, input)

			return nil, domainerrors.ErrUnknownIdentifier
		}

		return nil, errors.Wrap(err, "failed to resolve identifier")
	}

	// 2. A disabled account refuses login before the password is even
	// looked at.
	if !identity.Enabled {
		srv.recordAttempt(ctx, identity, input, entity.OutcomeFailed)
		srv.publishLoginEvent(ctx, service.EventLoginFailed, identity, input)

		return nil, domainerrors.ErrAccountDisabled
	}

	// 3. Verify the password.
	if !srv.hasher.Check(identity.PasswordHash, input.Password) {
		srv.recordAttempt(ctx, identity, input, entity.OutcomeFailed)
		srv.publishLoginEvent(ctx, service.EventLoginFailed, identity, input)

		return nil, domainerrors.ErrBadCredentials
	}

	// 4. A never-activated account fails even with the right password.
	if !identity.Activated {
		srv.recordAttempt(ctx, identity, input, entity.OutcomeFailed)
		srv.publishLoginEvent(ctx, service.EventLoginFailed, identity, input)

		return nil, domainerrors.ErrAccountNotActivated
	}

	// 5. Issue the credential pair; any prior refresh token is displaced.
	pair, err := srv.tokens.Issue(ctx, identity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue credentials")
	}

	// 6. Open the session record.
	session, err := srv.sessions.Open(ctx, identity.ID, input.RemoteAddr, input.UserAgent)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session")
	}

	srv.recordAttempt(ctx, identity, input, entity.OutcomeSuccess)
	srv.publishLoginEvent(ctx, service.EventLoginSucceeded, identity, input)

	srv.log(ctx).Info("Login succeeded", slog.Any("user_id", identity.ID))

	return &usecase.LoginOutput{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken.Token,
		SessionID:    session.ID.String(),
		Identity:     identity,
	}, nil
}

// Refresh exchanges a live refresh token for a fresh credential pair.
func (srv *authService) Refresh(ctx context.Context, input *usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	pair, err := srv.tokens.Rotate(ctx, input.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRefreshTokenNotFound):
			return nil, domainerrors.ErrRefreshTokenNotFound
		case errors.Is(err, repository.ErrRefreshTokenExpired):
			return nil, domainerrors.ErrRefreshTokenExpired
		default:
			return nil, errors.Wrap(err, "failed to rotate refresh token")
		}
	}

	return &usecase.RefreshOutput{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken.Token,
	}, nil
}

// Logout revokes the refresh token and closes the session. Both halves are
// idempotent: logging out with a token already gone still succeeds.
func (srv *authService) Logout(ctx context.Context, input *usecase.LogoutInput) error {
	token, err := srv.tokens.FindByToken(ctx, input.RefreshToken)
	if err != nil {
		if !errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return errors.Wrap(err, "failed to find refresh token for logout")
		}
		srv.log(ctx).Warn("Logout with unknown refresh token")
	} else {
		if err := srv.tokens.Revoke(ctx, token.UserID); err != nil {
			return errors.Wrap(err, "failed to revoke refresh token")
		}
	}

	if input.SessionID != "" {
		sessionID, err := uuid.Parse(input.SessionID)
		if err != nil {
			return domainerrors.ErrValidationFailed.WrapMessage("malformed session id")
		}
		if err := srv.sessions.Close(ctx, sessionID); err != nil {
			// The token is already revoked; a stale session record is
			// logged rather than surfaced.
			srv.log(ctx).Warn("Failed to close session on logout",
				slog.String("session_id", input.SessionID), slog.Any("error", err))
		}
	}

	srv.log(ctx).Info("Logout completed")

	return nil
}

// LogoutAll revokes every live refresh token.
func (srv *authService) LogoutAll(ctx context.Context) error {
	if err := srv.tokens.RevokeAll(ctx); err != nil {
		return errors.Wrap(err, "failed to revoke all refresh tokens")
	}

	return nil
}

func (srv *authService) resolveIdentifier(ctx context.Context, identifier string) (*entity.Identity, error) {
	var identity *entity.Identity

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		identityRepo := repoFactory.IdentityRepo()

		var err error
		if strings.Contains(identifier, "@") {
			identity, err = identityRepo.FindByEmail(ctx, identifier)
		} else {
			identity, err = identityRepo.FindByNickname(ctx, identifier)
		}

		return err
	})

	if err != nil {
		return nil, err
	}

	return identity, nil
}

// recordAttempt writes the audit fact for one login attempt. Failures are
// logged and swallowed; the attempt trail is best-effort and never changes
// the auth result.
func (srv *authService) recordAttempt(ctx context.Context, identity *entity.Identity, input *usecase.LoginInput, outcome entity.AttemptOutcome) {
	record := &usecase.RecordAttemptInput{
		RemoteAddr: input.RemoteAddr,
		UserAgent:  input.UserAgent,
		Outcome:    outcome,
	}

	if strings.Contains(input.Identifier, "@") {
		record.Email = input.Identifier
	} else {
		record.Nickname = input.Identifier
	}

	var err error
	if identity != nil {
		record.UserID = &identity.ID
		record.Email = identity.Email
		record.Nickname = identity.Nickname
		err = srv.audit.RecordIdentified(ctx, record)
	} else {
		err = srv.audit.RecordAnonymous(ctx, record)
	}

	if err != nil {
		srv.log(ctx).Error("Failed to record login attempt", slog.Any("error", err))
	}
}

// publishLoginEvent emits the event without blocking the request. The
// detached context keeps the publish alive after the request ends.
func (srv *authService) publishLoginEvent(ctx context.Context, eventType string, identity *entity.Identity, input *usecase.LoginInput) {
	event := &service.AuthEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		Type:       eventType,
		RemoteAddr: input.RemoteAddr,
		OccurredAt: srv.clock.Now().UTC().Format(time.RFC3339),
	}
	if identity != nil {
		event.UserID = identity.ID.String()
		event.Email = identity.Email
		event.Nickname = identity.Nickname
	}

	detached := context.WithoutCancel(ctx)
	logger := srv.log(ctx)
	go func() {
		if err := srv.publisher.PublishAuthEvent(detached, event); err != nil {
			logger.Warn("Failed to publish auth event",
				slog.String("type", eventType), slog.Any("error", err))
		}
	}()
}
