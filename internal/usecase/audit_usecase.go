package usecase

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"

	"github.com/google/uuid"
)

// RecordAttemptInput carries the facts of one authentication attempt.
// UserID is nil when the identifier never resolved to an account.
type RecordAttemptInput struct {
	UserID     *uuid.UUID
	Email      string
	Nickname   string
	RemoteAddr string
	UserAgent  string
	Outcome    entity.AttemptOutcome
}

// AuditUsecase records and exposes the login attempt trail. Lockout policy
// belongs to its callers; the configured throttle threshold is the one piece
// of policy evaluated here, via IsThrottled.
type AuditUsecase interface {
	// RecordIdentified appends an attempt against a resolved account.
	RecordIdentified(ctx context.Context, input *RecordAttemptInput) error

	// RecordAnonymous appends an attempt whose identifier matched nothing.
	RecordAnonymous(ctx context.Context, input *RecordAttemptInput) error

	// CountByEmail counts attempts for an email over all time.
	CountByEmail(ctx context.Context, email string) (int64, error)

	// CountByEmailSince counts attempts for an email inside a window.
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int64, error)

	// CountByNickname counts attempts for a nickname over all time.
	CountByNickname(ctx context.Context, nickname string) (int64, error)

	// CountByNicknameSince counts attempts for a nickname inside a window.
	CountByNicknameSince(ctx context.Context, nickname string, since time.Time) (int64, error)

	// CountByAddress counts attempts from an origin address over all time.
	CountByAddress(ctx context.Context, remoteAddr string) (int64, error)

	// CountByAddressSince counts attempts from an address inside a window.
	CountByAddressSince(ctx context.Context, remoteAddr string, since time.Time) (int64, error)

	// CountRecentFailures counts FAILED attempts for a nickname inside a
	// window. A non-positive window falls back to the configured throttle
	// window. This is the query a lockout policy would consult.
	CountRecentFailures(ctx context.Context, nickname string, window time.Duration) (int64, error)

	// IsThrottled reports whether the account has reached the configured
	// failure threshold inside the throttle window.
	IsThrottled(ctx context.Context, nickname string) (bool, error)

	// ListByEmail returns identified attempts for an email, newest first.
	ListByEmail(ctx context.Context, email string, page repository.Page) ([]*entity.LoginAttempt, error)

	// ListByNickname returns identified attempts for a nickname, newest first.
	ListByNickname(ctx context.Context, nickname string, page repository.Page) ([]*entity.LoginAttempt, error)

	// ListByAddress returns identified attempts from an address, newest first.
	ListByAddress(ctx context.Context, remoteAddr string, page repository.Page) ([]*entity.LoginAttempt, error)

	// ListBetween returns identified attempts inside a time range, newest first.
	ListBetween(ctx context.Context, from, to time.Time, page repository.Page) ([]*entity.LoginAttempt, error)

	// DeleteBefore removes attempts older than the cutoff (retention sweep).
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// EnforceRetention removes attempts older than the configured retention
	// period and reports how many were removed. A zero retention keeps
	// everything.
	EnforceRetention(ctx context.Context) (int64, error)

	// DeleteByEmailBefore removes one email's attempts older than the cutoff.
	DeleteByEmailBefore(ctx context.Context, email string, cutoff time.Time) (int64, error)

	// DeleteByNicknameBefore removes one nickname's attempts older than the cutoff.
	DeleteByNicknameBefore(ctx context.Context, nickname string, cutoff time.Time) (int64, error)
}
