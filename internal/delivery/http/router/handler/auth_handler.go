// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"gatekeeper/internal/delivery/http/response"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthHandler holds dependencies for authentication-related handlers.
type AuthHandler struct {
	auth     usecase.AuthUsecase
	accounts usecase.AccountUsecase
	keys     usecase.OneTimeKeyUsecase
	logger   *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(
	auth usecase.AuthUsecase,
	accounts usecase.AccountUsecase,
	keys usecase.OneTimeKeyUsecase,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		accounts: accounts,
		keys:     keys,
		logger:   logger,
	}
}

// --- Request DTOs ---

type registerRequest struct {
	Nickname string `json:"nickname" validate:"required,max=64,excludes=@"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Language string `json:"language" validate:"omitempty,bcp47_language_tag"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	SessionID    string `json:"session_id" validate:"omitempty,uuid"`
}

type activateRequest struct {
	KeyID        string `json:"key_id" validate:"required,uuid"`
	Key          string `json:"key" validate:"required"`
	TempPassword string `json:"temp_password"`
	NewPassword  string `json:"new_password"`
}

type resetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	KeyID       string `json:"key_id" validate:"required,uuid"`
	Key         string `json:"key" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// --- Response DTOs ---

// accountResponse is the outward shape of an account. The password hash and
// other internals never leave the domain.
type accountResponse struct {
	ID        string   `json:"id"`
	Nickname  string   `json:"nickname"`
	Email     string   `json:"email"`
	Enabled   bool     `json:"enabled"`
	Activated bool     `json:"activated"`
	Language  string   `json:"language,omitempty"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at"`
}

func toAccountResponse(identity *entity.Identity) *accountResponse {
	return &accountResponse{
		ID:        identity.ID.String(),
		Nickname:  identity.Nickname,
		Email:     identity.Email,
		Enabled:   identity.Enabled,
		Activated: identity.Activated,
		Language:  identity.Language,
		Roles:     identity.Roles.ToStrings(),
		CreatedAt: identity.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id,omitempty"`
}

// Register handles the account registration request.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.accounts.Register(c.Request().Context(), &usecase.RegisterInput{
		Nickname: req.Nickname,
		Email:    req.Email,
		Password: req.Password,
		Language: req.Language,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, toAccountResponse(output.Identity), "Account registered successfully")
}

// Login handles the login request.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.auth.Login(c.Request().Context(), &usecase.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		RemoteAddr: c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &tokenPairResponse{
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
		SessionID:    output.SessionID,
	}, "Login successful")
}

// Refresh handles the token rotation request.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid refresh input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	output, err := h.auth.Refresh(c.Request().Context(), &usecase.RefreshInput{
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &tokenPairResponse{
		AccessToken:  output.AccessToken,
		RefreshToken: output.RefreshToken,
	}, "Token refreshed successfully")
}

// Logout handles the logout request.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid logout input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.auth.Logout(c.Request().Context(), &usecase.LogoutInput{
		RefreshToken: req.RefreshToken,
		SessionID:    req.SessionID,
	}); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Successfully logged out"}, "Logout successful")
}

// Activate handles the account activation request. It spends the one-time
// activation key and, when the caller supplies one, replaces the temporary
// password in the same step.
func (h *AuthHandler) Activate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid activation input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	keyID, err := uuid.Parse(req.KeyID)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid key ID")
	}

	err = h.keys.ConsumeForActivation(c.Request().Context(), keyID, req.Key, req.TempPassword, req.NewPassword)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Account activated"}, "Account activated successfully")
}

// RequestPasswordReset handles the reset key issuance request. The response
// is identical whether or not the email belongs to an account.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid reset input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusAccepted,
		map[string]string{"message": "If the address is registered, a reset key has been sent"},
		"Reset requested")
}

// ConfirmPasswordReset handles the reset key consumption request.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid reset input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	keyID, err := uuid.Parse(req.KeyID)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid key ID")
	}

	err = h.keys.ConsumeForReset(c.Request().Context(), keyID, req.Key, req.NewPassword)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Password reset"}, "Password reset successfully")
}

// HealthCheck reports process liveness.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service healthy")
}
