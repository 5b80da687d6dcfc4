// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"gatekeeper/internal/domain/entity"
)

// --- Input DTOs ---

// LoginInput defines the data required to log in. Identifier is either an
// email address or a nickname; a contained '@' means email.
type LoginInput struct {
	Identifier string
	Password   string
	RemoteAddr string
	UserAgent  string
}

// RefreshInput defines the data required to rotate a credential pair.
type RefreshInput struct {
	RefreshToken string
}

// LogoutInput defines the data required to end a session.
type LogoutInput struct {
	RefreshToken string
	SessionID    string
}

// --- Output DTOs ---

// LoginOutput returns the issued credential pair after a successful login.
type LoginOutput struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	Identity     *entity.Identity
}

// RefreshOutput returns the replacement credential pair.
type RefreshOutput struct {
	AccessToken  string
	RefreshToken string
}

// AuthUsecase defines the interface for the authentication flow.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	// Login authenticates an identifier/password pair, records the attempt,
	// and on success issues a credential pair and opens a session.
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)

	// Refresh exchanges a live refresh token for a fresh credential pair.
	Refresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error)

	// Logout revokes the refresh token and closes the session.
	Logout(ctx context.Context, input *LogoutInput) error

	// LogoutAll revokes every live refresh token (global revocation).
	LogoutAll(ctx context.Context) error
}
