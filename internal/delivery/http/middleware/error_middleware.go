package middleware

import (
	"log/slog"
	"net/http"

	domainerrors "gatekeeper/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ErrorMiddleware error handling middleware
type ErrorMiddleware struct {
	logger *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
	}
}

// loginOutcomeErrors are the distinct login rejections that must all look
// identical to the caller. The precise reason stays in the server logs; the
// wire sees one generic 401 so probing cannot tell a wrong password from an
// unknown account or a disabled one.
var loginOutcomeErrors = []error{
	domainerrors.ErrUnknownIdentifier,
	domainerrors.ErrBadCredentials,
	domainerrors.ErrAccountDisabled,
	domainerrors.ErrAccountNotActivated,
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	// Collapse every login rejection into one indistinguishable response.
	for _, outcome := range loginOutcomeErrors {
		if errors.Is(err, outcome) {
			m.logger.Warn("Login rejected",
				"reason", err.Error(),
				"path", c.Request().URL.Path,
				"remote_ip", c.RealIP(),
			)

			c.JSON(http.StatusUnauthorized, domainerrors.Response{
				Success: false,
				Code:    http.StatusUnauthorized,
				Message: "Invalid credentials",
				Error: &domainerrors.ErrorInfo{
					Code:    "INVALID_CREDENTIALS",
					Details: "",
				},
			})

			return
		}
	}

	// Try to parse as AppError
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPCode(), domainerrors.Response{
			Success: false,
			Code:    appErr.HTTPCode(),
			Message: appErr.Message(),
			Error: &domainerrors.ErrorInfo{
				Code:    appErr.ErrorCode(),
				Details: appErr.Details(),
			},
		})

		return
	}

	// Check if it's Echo's HTTPError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message, ok := httpErr.Message.(string)
		if !ok {
			message = http.StatusText(httpErr.Code)
		}

		c.JSON(httpErr.Code, domainerrors.Response{
			Success: false,
			Code:    httpErr.Code,
			Message: message,
			Error: &domainerrors.ErrorInfo{
				Code:    "HTTP_ERROR",
				Details: message,
			},
		})

		return
	}

	// Default to internal error, log error and return generic error
	m.logger.Error("Unhandled error",
		"error", err.Error(),
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
	)

	c.JSON(http.StatusInternalServerError, domainerrors.Response{
		Success: false,
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
		Error: &domainerrors.ErrorInfo{
			Code:    "INTERNAL_ERROR",
			Details: err.Error(),
		},
	})
}
