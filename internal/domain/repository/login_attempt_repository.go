// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"
)

// Page bounds a paginated audit listing. Offset is zero-based.
type Page struct {
	Offset int
	Limit  int
}

// LoginAttemptRepository persists both shapes of authentication audit facts:
// identified attempts (resolved account, success or failure) and anonymous
// attempts (identifier never resolved). Counts span both shapes, since
// throttling policy cares about the identifier, not about whether it
// resolved. A zero `since` means an unbounded count.
type LoginAttemptRepository interface {
	// CreateIdentified appends an attempt against a known account.
	CreateIdentified(ctx context.Context, attempt *entity.LoginAttempt) error

	// CreateAnonymous appends an attempt whose identifier resolved to nothing.
	CreateAnonymous(ctx context.Context, attempt *entity.FailedLoginAttempt) error

	// CountByEmail counts attempts recorded for an email, optionally windowed.
	CountByEmail(ctx context.Context, email string, since time.Time) (int64, error)

	// CountByNickname counts attempts recorded for a nickname, optionally windowed.
	CountByNickname(ctx context.Context, nickname string, since time.Time) (int64, error)

	// CountByAddress counts attempts recorded from an origin address, optionally windowed.
	CountByAddress(ctx context.Context, remoteAddr string, since time.Time) (int64, error)

	// CountFailedByNickname counts only FAILED identified attempts for a
	// nickname, optionally windowed. This is the lockout-policy query.
	CountFailedByNickname(ctx context.Context, nickname string, since time.Time) (int64, error)

	// ListByEmail returns identified attempts for an email, newest first.
	ListByEmail(ctx context.Context, email string, page Page) ([]*entity.LoginAttempt, error)

	// ListByNickname returns identified attempts for a nickname, newest first.
	ListByNickname(ctx context.Context, nickname string, page Page) ([]*entity.LoginAttempt, error)

	// ListByAddress returns identified attempts from an address, newest first.
	ListByAddress(ctx context.Context, remoteAddr string, page Page) ([]*entity.LoginAttempt, error)

	// ListBetween returns identified attempts inside a time range, newest first.
	ListBetween(ctx context.Context, from, to time.Time, page Page) ([]*entity.LoginAttempt, error)

	// ListAnonymousByAddress returns anonymous attempts from an address, newest first.
	ListAnonymousByAddress(ctx context.Context, remoteAddr string, page Page) ([]*entity.FailedLoginAttempt, error)

	// DeleteBefore removes all attempt rows older than the cutoff and reports
	// how many were removed. Retention sweeps use this.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteByEmailBefore removes attempt rows for one email older than the cutoff.
	DeleteByEmailBefore(ctx context.Context, email string, cutoff time.Time) (int64, error)

	// DeleteByNicknameBefore removes attempt rows for one nickname older than the cutoff.
	DeleteByNicknameBefore(ctx context.Context, nickname string, cutoff time.Time) (int64, error)
}
