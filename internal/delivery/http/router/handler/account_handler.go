package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"gatekeeper/internal/delivery/http/response"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AccountHandler holds dependencies for self-service account handlers.
type AccountHandler struct {
	accounts usecase.AccountUsecase
	sessions usecase.SessionUsecase
	logger   *slog.Logger
}

// NewAccountHandler is the constructor for AccountHandler, injected by Fx.
func NewAccountHandler(
	accounts usecase.AccountUsecase,
	sessions usecase.SessionUsecase,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
	}
}

// --- Request DTOs ---

type updateNicknameRequest struct {
	Nickname string `json:"nickname" validate:"required,max=64,excludes=@"`
}

type updateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type updateLanguageRequest struct {
	Language string `json:"language" validate:"required,bcp47_language_tag"`
}

// --- Response DTOs ---

type sessionResponse struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at,omitempty"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	Status     string `json:"status"`
}

func toSessionResponse(session *entity.Session) *sessionResponse {
	resp := &sessionResponse{
		ID:         session.ID.String(),
		StartedAt:  session.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		RemoteAddr: session.RemoteAddr,
		UserAgent:  session.UserAgent,
		Status:     string(session.Status),
	}
	if session.EndedAt != nil {
		resp.EndedAt = session.EndedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return resp
}

// currentUserID reads the authenticated account ID placed on the context by
// the auth middleware.
func currentUserID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get("userID").(uuid.UUID)

	return userID, ok
}

// pageFromQuery reads page/size query parameters with sane bounds.
func pageFromQuery(c echo.Context) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 0 {
		page = 0
	}

	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 || size > 100 {
		size = 20
	}

	return repository.Page{Offset: page * size, Limit: size}
}

// GetProfile returns the authenticated account.
func (h *AccountHandler) GetProfile(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	identity, err := h.accounts.GetByID(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(identity), "Profile retrieved successfully")
}

// UpdateNickname replaces the authenticated account's nickname.
func (h *AccountHandler) UpdateNickname(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	var req updateNicknameRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid nickname input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.UpdateNickname(c.Request().Context(), userID, req.Nickname); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Nickname updated successfully")
}

// UpdateEmail replaces the authenticated account's email address.
func (h *AccountHandler) UpdateEmail(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	var req updateEmailRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid email input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.UpdateEmail(c.Request().Context(), userID, req.Email); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Email updated successfully")
}

// ChangePassword verifies the current password and stores a new one.
func (h *AccountHandler) ChangePassword(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid password input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Password changed successfully")
}

// UpdateLanguage replaces the preferred language tag.
func (h *AccountHandler) UpdateLanguage(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	var req updateLanguageRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid language input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.UpdateLanguage(c.Request().Context(), userID, req.Language); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Language updated successfully")
}

// ListSessions returns the authenticated account's sessions, newest first.
func (h *AccountHandler) ListSessions(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	sessions, err := h.sessions.ListByUser(c.Request().Context(), userID, pageFromQuery(c))
	if err != nil {
		return errors.WithStack(err)
	}

	out := make([]*sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}

	return response.Success(c, http.StatusOK, out, "Sessions retrieved successfully")
}

// CloseSession marks one of the authenticated account's sessions logged out.
func (h *AccountHandler) CloseSession(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return response.Unauthorized(c, "UNAUTHORIZED", "Missing authentication")
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid session ID")
	}

	// Confirm ownership before closing.
	sessions, err := h.sessions.ListByUser(c.Request().Context(), userID, repository.Page{Limit: 100})
	if err != nil {
		return errors.WithStack(err)
	}

	owned := false
	for _, s := range sessions {
		if s.ID == sessionID {
			owned = true

			break
		}
	}
	if !owned {
		return response.NotFound(c, "SESSION_NOT_FOUND", "Session not found")
	}

	if err := h.sessions.Close(c.Request().Context(), sessionID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Session closed successfully")
}
