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

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager repository.TransactionManager
	clock     service.Clock
	logger    *slog.Logger

	retention time.Duration
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	Config    *config.Config
	TxManager repository.TransactionManager
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager: params.TxManager,
		clock:     params.Clock,
		logger:    params.Logger,
		retention: params.Config.Retention.Sessions,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Open records the start of a session at login time.
func (srv *sessionService) Open(ctx context.Context, userID uuid.UUID, remoteAddr, userAgent string) (*entity.Session, error) {
	session := &entity.Session{
		UserID:     userID,
		StartedAt:  srv.clock.Now(),
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		Status:     entity.SessionActive,
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.SessionRepo().Create(ctx, session)
	})

	if err != nil {
		srv.log(ctx).Error("Failed to open session",
			slog.Any("user_id", userID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to open session")
	}

	return session, nil
}

// ListByUser returns sessions for an account, newest first.
func (srv *sessionService) ListByUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]*entity.Session, error) {
	var sessions []*entity.Session

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.SessionRepo().FindByUserID(ctx, userID, page)
		if err != nil {
			return err
		}
		sessions = found

		return nil
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	return sessions, nil
}

// Close marks a session LOGGED_OUT and stamps its end time.
func (srv *sessionService) Close(ctx context.Context, id uuid.UUID) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.SessionRepo().Close(ctx, id, srv.clock.Now())
	})

	if err != nil {
		srv.log(ctx).Warn("Failed to close session",
			slog.Any("session_id", id), slog.Any("error", err))

		return errors.Wrap(err, "failed to close session")
	}

	return nil
}

// ExpireStartedBefore marks still-ACTIVE sessions older than the cutoff as EXPIRED.
func (srv *sessionService) ExpireStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var expired int64

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		count, err := repoFactory.SessionRepo().ExpireStartedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		expired = count

		return nil
	})

	if err != nil {
		return 0, errors.Wrap(err, "failed to expire sessions")
	}

	srv.log(ctx).Info("Expired stale sessions", slog.Int64("count", expired))

	return expired, nil
}

// ExpireStale marks still-ACTIVE sessions older than the configured retention
// period as EXPIRED. A zero retention leaves everything active.
func (srv *sessionService) ExpireStale(ctx context.Context) (int64, error) {
	if srv.retention <= 0 {
		return 0, nil
	}

	return srv.ExpireStartedBefore(ctx, srv.clock.Now().Add(-srv.retention))
}
