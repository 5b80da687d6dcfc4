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

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultThrottleWindow      = 15 * time.Minute
	defaultThrottleMaxFailures = 5
)

// loginAuditService implements the AuditUsecase interface. It owns the
// append-only attempt trail and answers count and list queries over it;
// what to do with the numbers is the caller's policy, except for the
// configured throttle threshold which IsThrottled evaluates here.
type loginAuditService struct {
	txManager repository.TransactionManager
	clock     service.Clock
	logger    *slog.Logger

	throttleWindow      time.Duration
	throttleMaxFailures int
	retention           time.Duration
}

// LoginAuditServiceParams holds dependencies for loginAuditService, injected by Fx.
type LoginAuditServiceParams struct {
	fx.In

	Config    *config.Config
	TxManager repository.TransactionManager
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewLoginAuditService is the constructor for loginAuditService.
func NewLoginAuditService(params LoginAuditServiceParams) usecase.AuditUsecase {
	window := params.Config.Auth.ThrottleWindow
	if window <= 0 {
		window = defaultThrottleWindow
	}
	maxFailures := params.Config.Auth.ThrottleMaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultThrottleMaxFailures
	}

	return &loginAuditService{
		txManager:           params.TxManager,
		clock:               params.Clock,
		logger:              params.Logger,
		throttleWindow:      window,
		throttleMaxFailures: maxFailures,
		retention:           params.Config.Retention.LoginAttempts,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *loginAuditService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// RecordIdentified appends an attempt against a resolved account.
func (srv *loginAuditService) RecordIdentified(ctx context.Context, input *usecase.RecordAttemptInput) error {
	attempt := &entity.LoginAttempt{
		UserID:      input.UserID,
		Email:       input.Email,
		Nickname:    input.Nickname,
		AttemptedAt: srv.clock.Now(),
		RemoteAddr:  input.RemoteAddr,
		UserAgent:   input.UserAgent,
		Outcome:     input.Outcome,
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.LoginAttemptRepo().CreateIdentified(ctx, attempt)
	})

	if err != nil {
		return errors.Wrap(err, "failed to record identified attempt")
	}

	return nil
}

// RecordAnonymous appends an attempt whose identifier matched nothing.
func (srv *loginAuditService) RecordAnonymous(ctx context.Context, input *usecase.RecordAttemptInput) error {
	attempt := &entity.FailedLoginAttempt{
		Email:       input.Email,
		Nickname:    input.Nickname,
		AttemptedAt: srv.clock.Now(),
		RemoteAddr:  input.RemoteAddr,
		UserAgent:   input.UserAgent,
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.LoginAttemptRepo().CreateAnonymous(ctx, attempt)
	})

	if err != nil {
		return errors.Wrap(err, "failed to record anonymous attempt")
	}

	return nil
}

// CountByEmail counts attempts for an email over all time.
func (srv *loginAuditService) CountByEmail(ctx context.Context, email string) (int64, error) {
	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountByEmail(ctx, email, time.Time{})
	})
}

// CountByEmailSince counts attempts for an email inside a window.
func (srv *loginAuditService) CountByEmailSince(ctx context.Context, email string, since time.Time) (int64, error) {
	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountByEmail(ctx, email, since)
	})
}

// CountByNickname counts attempts for a nickname over all time.
func (srv *loginAuditService) CountByNickname(ctx context.Context, nickname string) (int64, error) {
	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountByNickname(ctx, nickname, time.Time{})
	})
}

// CountByNicknameSince counts attempts for a nickname inside a window.
func (srv *loginAuditService) CountByNicknameSince(ctx context.Context, nickname string, since time.Time) (int64, error) {
	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountByNickname(ctx, nickname, since)
	})
}

// CountByAddress counts attempts from an origin address over all time.
func (srv *loginAuditService) CountByAddress(ctx context.Context, remoteAddr string) (int64, error) {
	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountByAddress(ctx, remoteAddr, time.Time{})
	})
}

// CountByAddressSince counts attempts from an address inside a window.
func (srv *loginAuditService) CountByAddressSince(ctx context.Context, remoteAddr string, since time.Time) (int64, error) {
	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountByAddress(ctx, remoteAddr, since)
	})
}

// CountRecentFailures counts FAILED attempts for a nickname inside a window.
// A non-positive window falls back to the configured throttle window.
func (srv *loginAuditService) CountRecentFailures(ctx context.Context, nickname string, window time.Duration) (int64, error) {
	if window <= 0 {
		window = srv.throttleWindow
	}
	since := srv.clock.Now().Add(-window)

	return srv.count(ctx, func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.CountFailedByNickname(ctx, nickname, since)
	})
}

// IsThrottled reports whether the account has reached the configured failure
// threshold inside the throttle window.
func (srv *loginAuditService) IsThrottled(ctx context.Context, nickname string) (bool, error) {
	failures, err := srv.CountRecentFailures(ctx, nickname, srv.throttleWindow)
	if err != nil {
		return false, err
	}

	return failures >= int64(srv.throttleMaxFailures), nil
}

// ListByEmail returns identified attempts for an email, newest first.
func (srv *loginAuditService) ListByEmail(ctx context.Context, email string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return srv.list(ctx, func(repo repository.LoginAttemptRepository) ([]*entity.LoginAttempt, error) {
		return repo.ListByEmail(ctx, email, page)
	})
}

// ListByNickname returns identified attempts for a nickname, newest first.
func (srv *loginAuditService) ListByNickname(ctx context.Context, nickname string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return srv.list(ctx, func(repo repository.LoginAttemptRepository) ([]*entity.LoginAttempt, error) {
		return repo.ListByNickname(ctx, nickname, page)
	})
}

// ListByAddress returns identified attempts from an address, newest first.
func (srv *loginAuditService) ListByAddress(ctx context.Context, remoteAddr string, page repository.Page) ([]*entity.LoginAttempt, error) {
	return srv.list(ctx, func(repo repository.LoginAttemptRepository) ([]*entity.LoginAttempt, error) {
		return repo.ListByAddress(ctx, remoteAddr, page)
	})
}

// ListBetween returns identified attempts inside a time range, newest first.
func (srv *loginAuditService) ListBetween(ctx context.Context, from, to time.Time, page repository.Page) ([]*entity.LoginAttempt, error) {
	return srv.list(ctx, func(repo repository.LoginAttemptRepository) ([]*entity.LoginAttempt, error) {
		return repo.ListBetween(ctx, from, to, page)
	})
}

// DeleteBefore removes attempts older than the cutoff (retention sweep).
func (srv *loginAuditService) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return srv.purge(ctx, "all", func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.DeleteBefore(ctx, cutoff)
	})
}

// EnforceRetention removes attempts older than the configured retention
// period. A zero retention keeps everything.
func (srv *loginAuditService) EnforceRetention(ctx context.Context) (int64, error) {
	if srv.retention <= 0 {
		return 0, nil
	}

	return srv.DeleteBefore(ctx, srv.clock.Now().Add(-srv.retention))
}

// DeleteByEmailBefore removes one email's attempts older than the cutoff.
func (srv *loginAuditService) DeleteByEmailBefore(ctx context.Context, email string, cutoff time.Time) (int64, error) {
	return srv.purge(ctx, "email", func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.DeleteByEmailBefore(ctx, email, cutoff)
	})
}

// DeleteByNicknameBefore removes one nickname's attempts older than the cutoff.
func (srv *loginAuditService) DeleteByNicknameBefore(ctx context.Context, nickname string, cutoff time.Time) (int64, error) {
	return srv.purge(ctx, "nickname", func(repo repository.LoginAttemptRepository) (int64, error) {
		return repo.DeleteByNicknameBefore(ctx, nickname, cutoff)
	})
}

func (srv *loginAuditService) count(ctx context.Context, countFn func(repository.LoginAttemptRepository) (int64, error)) (int64, error) {
	var count int64

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		result, err := countFn(repoFactory.LoginAttemptRepo())
		if err != nil {
			return err
		}
		count = result

		return nil
	})

	if err != nil {
		return 0, errors.Wrap(err, "failed to count login attempts")
	}

	return count, nil
}

func (srv *loginAuditService) list(ctx context.Context, listFn func(repository.LoginAttemptRepository) ([]*entity.LoginAttempt, error)) ([]*entity.LoginAttempt, error) {
	var attempts []*entity.LoginAttempt

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		result, err := listFn(repoFactory.LoginAttemptRepo())
		if err != nil {
			return err
		}
		attempts = result

		return nil
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to list login attempts")
	}

	return attempts, nil
}

func (srv *loginAuditService) purge(ctx context.Context, scope string, deleteFn func(repository.LoginAttemptRepository) (int64, error)) (int64, error) {
	var removed int64

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		result, err := deleteFn(repoFactory.LoginAttemptRepo())
		if err != nil {
			return err
		}
		removed = result

		return nil
	})

	if err != nil {
		return 0, errors.Wrap(err, "failed to purge login attempts")
	}

	srv.log(ctx).Info("Purged login attempts",
		slog.String("scope", scope), slog.Int64("count", removed))

	return removed, nil
}
