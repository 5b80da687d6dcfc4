package handler

import (
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/delivery/http/response"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AdminHandler holds dependencies for administrator-only handlers: audit
// trail queries, account status switches, and retention sweeps.
type AdminHandler struct {
	audit    usecase.AuditUsecase
	accounts usecase.AccountUsecase
	sessions usecase.SessionUsecase
	auth     usecase.AuthUsecase
	logger   *slog.Logger
}

// NewAdminHandler is the constructor for AdminHandler, injected by Fx.
func NewAdminHandler(
	audit usecase.AuditUsecase,
	accounts usecase.AccountUsecase,
	sessions usecase.SessionUsecase,
	auth usecase.AuthUsecase,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		audit:    audit,
		accounts: accounts,
		sessions: sessions,
		auth:     auth,
		logger:   logger,
	}
}

// --- Request DTOs ---

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type setRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,oneof=ROLE_USER ROLE_ADMIN"`
}

// --- Response DTOs ---

type attemptResponse struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id,omitempty"`
	Email       string `json:"email,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	AttemptedAt string `json:"attempted_at"`
	RemoteAddr  string `json:"remote_addr"`
	UserAgent   string `json:"user_agent"`
	Outcome     string `json:"outcome"`
}

func toAttemptResponse(attempt *entity.LoginAttempt) *attemptResponse {
	resp := &attemptResponse{
		ID:          attempt.ID,
		Email:       attempt.Email,
		Nickname:    attempt.Nickname,
		AttemptedAt: attempt.AttemptedAt.Format("2006-01-02T15:04:05Z07:00"),
		RemoteAddr:  attempt.RemoteAddr,
		UserAgent:   attempt.UserAgent,
		Outcome:     string(attempt.Outcome),
	}
	if attempt.UserID != nil {
		resp.UserID = attempt.UserID.String()
	}

	return resp
}

// ListAttempts returns identified login attempts filtered by exactly one of
// email, nickname, address, or a from/to time range. Results are newest first.
func (h *AdminHandler) ListAttempts(c echo.Context) error {
	ctx := c.Request().Context()
	page := pageFromQuery(c)

	var (
		attempts []*entity.LoginAttempt
		err      error
	)

	switch {
	case c.QueryParam("email") != "":
		attempts, err = h.audit.ListByEmail(ctx, c.QueryParam("email"), page)
	case c.QueryParam("nickname") != "":
		attempts, err = h.audit.ListByNickname(ctx, c.QueryParam("nickname"), page)
	case c.QueryParam("address") != "":
		attempts, err = h.audit.ListByAddress(ctx, c.QueryParam("address"), page)
	case c.QueryParam("from") != "" && c.QueryParam("to") != "":
		var from, to time.Time
		from, err = time.Parse(time.RFC3339, c.QueryParam("from"))
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid 'from' timestamp")
		}
		to, err = time.Parse(time.RFC3339, c.QueryParam("to"))
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid 'to' timestamp")
		}
		attempts, err = h.audit.ListBetween(ctx, from, to, page)
	default:
		return response.BadRequest(c, "INVALID_INPUT", "Provide email, nickname, address, or from/to filters")
	}
	if err != nil {
		return errors.WithStack(err)
	}

	out := make([]*attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toAttemptResponse(a))
	}

	return response.Success(c, http.StatusOK, out, "Attempts retrieved successfully")
}

// CountAttempts counts attempts for an identifier, optionally bounded by a
// 'since' timestamp. Counts span both identified and anonymous attempts.
func (h *AdminHandler) CountAttempts(c echo.Context) error {
	ctx := c.Request().Context()

	var since time.Time
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid 'since' timestamp")
		}
		since = parsed
	}

	var (
		count int64
		err   error
	)

	switch {
	case c.QueryParam("email") != "":
		if since.IsZero() {
			count, err = h.audit.CountByEmail(ctx, c.QueryParam("email"))
		} else {
			count, err = h.audit.CountByEmailSince(ctx, c.QueryParam("email"), since)
		}
	case c.QueryParam("nickname") != "":
		if since.IsZero() {
			count, err = h.audit.CountByNickname(ctx, c.QueryParam("nickname"))
		} else {
			count, err = h.audit.CountByNicknameSince(ctx, c.QueryParam("nickname"), since)
		}
	case c.QueryParam("address") != "":
		if since.IsZero() {
			count, err = h.audit.CountByAddress(ctx, c.QueryParam("address"))
		} else {
			count, err = h.audit.CountByAddressSince(ctx, c.QueryParam("address"), since)
		}
	default:
		return response.BadRequest(c, "INVALID_INPUT", "Provide email, nickname, or address")
	}
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]int64{"count": count}, "Count retrieved successfully")
}

// CountRecentFailures counts FAILED attempts for a nickname inside a window,
// the number a lockout policy would consult. An omitted window uses the
// configured throttle window; the response also carries whether the account
// has crossed the configured failure threshold.
func (h *AdminHandler) CountRecentFailures(c echo.Context) error {
	ctx := c.Request().Context()

	nickname := c.QueryParam("nickname")
	if nickname == "" {
		return response.BadRequest(c, "INVALID_INPUT", "Provide nickname")
	}

	var window time.Duration
	if raw := c.QueryParam("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return response.BadRequest(c, "INVALID_INPUT", "Invalid 'window' duration")
		}
		window = parsed
	}

	count, err := h.audit.CountRecentFailures(ctx, nickname, window)
	if err != nil {
		return errors.WithStack(err)
	}
	throttled, err := h.audit.IsThrottled(ctx, nickname)
	if err != nil {
		return errors.WithStack(err)
	}

	out := map[string]any{"count": count, "throttled": throttled}

	return response.Success(c, http.StatusOK, out, "Count retrieved successfully")
}

// PurgeAttempts removes attempts older than the 'before' cutoff, optionally
// scoped to one email or nickname. An unscoped purge with no cutoff falls
// back to the configured retention period.
func (h *AdminHandler) PurgeAttempts(c echo.Context) error {
	ctx := c.Request().Context()

	rawBefore := c.QueryParam("before")
	if rawBefore == "" && c.QueryParam("email") == "" && c.QueryParam("nickname") == "" {
		removed, err := h.audit.EnforceRetention(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return response.Success(c, http.StatusOK, map[string]int64{"removed": removed}, "Attempts purged successfully")
	}

	before, err := time.Parse(time.RFC3339, rawBefore)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid 'before' timestamp")
	}

	var removed int64
	switch {
	case c.QueryParam("email") != "":
		removed, err = h.audit.DeleteByEmailBefore(ctx, c.QueryParam("email"), before)
	case c.QueryParam("nickname") != "":
		removed, err = h.audit.DeleteByNicknameBefore(ctx, c.QueryParam("nickname"), before)
	default:
		removed, err = h.audit.DeleteBefore(ctx, before)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]int64{"removed": removed}, "Attempts purged successfully")
}

// GetAccount returns any account by ID.
func (h *AdminHandler) GetAccount(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid account ID")
	}

	identity, err := h.accounts.GetByID(c.Request().Context(), accountID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(identity), "Account retrieved successfully")
}

// SetEnabled flips an account's administrative status flag. Disabling also
// revokes the account's live refresh token.
func (h *AdminHandler) SetEnabled(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid account ID")
	}

	var req setEnabledRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid status input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.SetEnabled(c.Request().Context(), accountID, *req.Enabled); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Account status updated successfully")
}

// SetRoles replaces an account's granted role set.
func (h *AdminHandler) SetRoles(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid account ID")
	}

	var req setRolesRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid roles input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.accounts.SetRoles(c.Request().Context(), accountID, entity.RolesFromStrings(req.Roles)); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Roles updated successfully")
}

// RevokeAllTokens revokes every live refresh token in the system. Access
// tokens already issued stay valid until they expire on their own.
func (h *AdminHandler) RevokeAllTokens(c echo.Context) error {
	if err := h.auth.LogoutAll(c.Request().Context()); err != nil {
		return errors.WithStack(err)
	}

	h.logger.Warn("All refresh tokens revoked",
		slog.String("admin_id", adminIDForLog(c)),
	)

	return response.Success(c, http.StatusOK, nil, "All refresh tokens revoked")
}

// ExpireSessions marks still-ACTIVE sessions started before the cutoff as
// EXPIRED. An omitted cutoff falls back to the configured session retention.
func (h *AdminHandler) ExpireSessions(c echo.Context) error {
	ctx := c.Request().Context()

	rawBefore := c.QueryParam("before")
	if rawBefore == "" {
		changed, err := h.sessions.ExpireStale(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return response.Success(c, http.StatusOK, map[string]int64{"expired": changed}, "Sessions expired successfully")
	}

	before, err := time.Parse(time.RFC3339, rawBefore)
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid 'before' timestamp")
	}

	changed, err := h.sessions.ExpireStartedBefore(ctx, before)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]int64{"expired": changed}, "Sessions expired successfully")
}

func adminIDForLog(c echo.Context) string {
	if userID, ok := currentUserID(c); ok {
		return userID.String()
	}

	return "unknown"
}
