// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrSessionNotFound is returned when no session matches the lookup.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists the lifetime records of successful logins.
type SessionRepository interface {
	// Create persists a new session at login time.
	Create(ctx context.Context, session *entity.Session) error

	// FindByID retrieves a session by its opaque identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// FindByUserID returns sessions for an account, newest first.
	FindByUserID(ctx context.Context, userID uuid.UUID, page Page) ([]*entity.Session, error)

	// Close marks a session LOGGED_OUT and stamps its end time.
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error

	// ExpireStartedBefore marks still-ACTIVE sessions older than the cutoff
	// as EXPIRED and reports how many changed.
	ExpireStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
