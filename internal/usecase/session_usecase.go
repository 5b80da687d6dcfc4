package usecase

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"

	"github.com/google/uuid"
)

// SessionUsecase exposes the lifetime records of successful logins.
type SessionUsecase interface {
	// Open records the start of a session at login time.
	Open(ctx context.Context, userID uuid.UUID, remoteAddr, userAgent string) (*entity.Session, error)

	// ListByUser returns sessions for an account, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, page repository.Page) ([]*entity.Session, error)

	// Close marks a session LOGGED_OUT and stamps its end time.
	Close(ctx context.Context, id uuid.UUID) error

	// ExpireStartedBefore marks still-ACTIVE sessions older than the cutoff
	// as EXPIRED and reports how many changed.
	ExpireStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ExpireStale marks still-ACTIVE sessions older than the configured
	// retention period as EXPIRED. A zero retention leaves everything active.
	ExpireStale(ctx context.Context) (int64, error)
}
