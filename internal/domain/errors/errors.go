package errors

import (
	"net/http"

	"gatekeeper/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Login outcome errors. UnknownIdentifier and BadCredentials are kept
	// distinct for server-side logs only; the delivery layer collapses them
	// into one generic failure so callers cannot enumerate accounts.
	ErrUnknownIdentifier = NewBaseError(
		http.StatusUnauthorized,
		"UNKNOWN_IDENTIFIER",
		"Invalid identifier or password",
		"",
	)

	ErrBadCredentials = NewBaseError(
		http.StatusUnauthorized,
		"BAD_CREDENTIALS",
		"Invalid identifier or password",
		"",
	)

	ErrAccountDisabled = NewBaseError(
		http.StatusUnauthorized,
		"ACCOUNT_DISABLED",
		"This account has been disabled",
		"",
	)

	ErrAccountNotActivated = NewBaseError(
		http.StatusUnauthorized,
		"ACCOUNT_NOT_ACTIVATED",
		"This account has not been activated yet",
		"",
	)

	// Token codec errors, classified so callers can distinguish an expired
	// token from a forged or garbled one.
	ErrTokenEmpty = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_EMPTY",
		"No token was provided",
		"",
	)

	ErrTokenMalformed = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_MALFORMED",
		"The token is not in a valid format",
		"",
	)

	ErrTokenSignature = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_BAD_SIGNATURE",
		"The token signature could not be verified",
		"",
	)

	ErrTokenExpired = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_EXPIRED",
		"The token has expired",
		"",
	)

	// Refresh token errors
	ErrRefreshTokenNotFound = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_TOKEN_NOT_FOUND",
		"Unknown refresh token",
		"",
	)

	ErrRefreshTokenExpired = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_TOKEN_EXPIRED",
		"The refresh token has expired",
		"",
	)

	// One-time key errors
	ErrOneTimeKeyNotFound = NewBaseError(
		http.StatusNotFound,
		"ONE_TIME_KEY_NOT_FOUND",
		"Unknown activation or reset key",
		"",
	)

	ErrOneTimeKeyInvalid = NewBaseError(
		http.StatusUnauthorized,
		"ONE_TIME_KEY_INVALID",
		"The presented key is not valid",
		"",
	)

	ErrOneTimeKeyExpired = NewBaseError(
		http.StatusGone,
		"ONE_TIME_KEY_EXPIRED",
		"The key has expired; request a new one",
		"",
	)

	ErrAlreadyActivated = NewBaseError(
		http.StatusConflict,
		"ALREADY_ACTIVATED",
		"This account is already activated",
		"",
	)

	ErrAlreadyConsumed = NewBaseError(
		http.StatusConflict,
		"ALREADY_CONSUMED",
		"This key has already been used",
		"",
	)

	// Identity errors
	ErrIdentityNotFound = NewBaseError(
		http.StatusNotFound,
		"IDENTITY_NOT_FOUND",
		"No such account",
		"",
	)

	ErrIdentityCreationFailed = NewBaseError(
		http.StatusInternalServerError,
		"IDENTITY_CREATION_FAILED",
		"Failed to create the account",
		"",
	)

	ErrIdentityUpdateFailed = NewBaseError(
		http.StatusInternalServerError,
		"IDENTITY_UPDATE_FAILED",
		"Failed to update the account",
		"",
	)

	ErrPasswordHashFailed = NewBaseError(
		http.StatusInternalServerError,
		"PASSWORD_HASH_FAILED",
		"Failed to process the password",
		"",
	)

	ErrPasswordStrength = NewBaseError(
		http.StatusBadRequest,
		"PASSWORD_STRENGTH",
		"The password does not meet the strength requirements",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
		"",
	)

	// Transaction-related errors
	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"Database transaction failed",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"Access denied",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found",
		"",
	)

	ErrConflict = NewBaseError(
		http.StatusConflict,
		"CONFLICT",
		"Resource conflict",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
