// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrOneTimeKeyNotFound is returned when no key row matches the lookup,
// or when MarkConsumed finds no live row to stamp.
var ErrOneTimeKeyNotFound = errors.New("one-time key not found")

// OneTimeKeyRepository persists activation and reset keys. Stamping the
// consumed_at column is the consumption primitive: the RowsAffected guard on
// MarkConsumed is what makes two concurrent consumes of the same key
// impossible. Consumed rows stay around so a re-presented key can report the
// state its first use produced.
type OneTimeKeyRepository interface {
	// Create persists a newly issued key.
	Create(ctx context.Context, key *entity.OneTimeKey) error

	// FindByID retrieves a key row by its unique ID, consumed or not.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.OneTimeKey, error)

	// MarkConsumed stamps a live key row as spent at the given instant.
	// Returns ErrOneTimeKeyNotFound when no unconsumed row matched, which a
	// consume transaction treats as the key having been spent by a
	// concurrent request.
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error

	// DeleteByUserAndPurpose removes any outstanding keys of one purpose for
	// an account. Re-issuing a key invalidates its predecessors.
	DeleteByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose entity.KeyPurpose) error

	// DeleteCreatedBefore removes keys of the given purpose issued before the
	// cutoff and reports how many were removed. Housekeeping only; expiry is
	// still evaluated at consumption time.
	DeleteCreatedBefore(ctx context.Context, purpose entity.KeyPurpose, cutoff time.Time) (int64, error)
}
