// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for identity persistence.
var (
	// ErrIdentityNotFound is returned when no account matches the lookup.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrDuplicateIdentity is returned when a unique constraint on email or
	// nickname would be violated.
	ErrDuplicateIdentity = errors.New("email or nickname already registered")
)

// IdentityRepository is the credential store contract. The core reads and
// writes accounts only through this narrow interface; field-level updates are
// explicit methods rather than a partial-update patch object.
type IdentityRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Identity, error)

	// FindByEmail retrieves a single account by its email address.
	FindByEmail(ctx context.Context, email string) (*entity.Identity, error)

	// FindByNickname retrieves a single account by its nickname.
	FindByNickname(ctx context.Context, nickname string) (*entity.Identity, error)

	// Create persists a new account.
	Create(ctx context.Context, identity *entity.Identity) error

	// UpdateNickname replaces the account's nickname.
	UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error

	// UpdateEmail replaces the account's email address.
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// UpdateLanguage replaces the preferred language tag.
	UpdateLanguage(ctx context.Context, id uuid.UUID, language string) error

	// SetEnabled flips the administrative status flag.
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error

	// SetActivated flips the activation flag.
	SetActivated(ctx context.Context, id uuid.UUID, activated bool) error

	// SetRoles replaces the granted role set.
	SetRoles(ctx context.Context, id uuid.UUID, roles entity.Roles) error

	// AcquireRowLock takes a FOR UPDATE lock on the account row so that
	// concurrent credential mutations for the same account serialize.
	// Only meaningful inside a transaction.
	AcquireRowLock(ctx context.Context, id uuid.UUID) error
}
