package usecase

import (
	"context"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Nickname string
	Email    string
	Password string
	Language string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created account plus its activation key.
type RegisterOutput struct {
	Identity      *entity.Identity
	ActivationKey *entity.OneTimeKey
}

// AccountUsecase defines account lifecycle operations outside the login flow.
type AccountUsecase interface {
	// Register creates a deactivated account, issues an activation key, and
	// publishes a registration event. Duplicate email or nickname fails
	// with ErrConflict.
	Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error)

	// RequestPasswordReset issues a reset key for the account behind the
	// email. An unknown email is silently accepted so callers cannot probe
	// for registered addresses.
	RequestPasswordReset(ctx context.Context, email string) error

	// GetByID returns the account with the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Identity, error)

	// UpdateNickname replaces the account's nickname.
	UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error

	// UpdateEmail replaces the account's email address.
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error

	// ChangePassword verifies the current password and stores a new hash.
	ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error

	// UpdateLanguage replaces the preferred language tag.
	UpdateLanguage(ctx context.Context, id uuid.UUID, language string) error

	// SetEnabled flips the administrative status flag. Disabling an account
	// also revokes its live refresh token.
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error

	// SetRoles replaces the granted role set.
	SetRoles(ctx context.Context, id uuid.UUID, roles entity.Roles) error
}
