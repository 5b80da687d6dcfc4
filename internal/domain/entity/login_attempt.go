// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome classifies an identified login attempt.
type AttemptOutcome string

const (
	// OutcomeSuccess marks an attempt that produced tokens.
	OutcomeSuccess AttemptOutcome = "SUCCESS"
	// OutcomeFailed marks an attempt rejected for any reason.
	OutcomeFailed AttemptOutcome = "FAILED"
)

// LoginAttempt is an append-only audit fact about one authentication try
// against a known account. UserID is nil when the identifier resolved but
// the account reference could not be attached.
type LoginAttempt struct {
	ID          int64          // Sequence-assigned ID; attempts are append-only.
	UserID      *uuid.UUID     // The resolved account, when resolution succeeded.
	Email       string         // Email the caller typed, if any.
	Nickname    string         // Nickname the caller typed, if any.
	AttemptedAt time.Time      // Instant the attempt was decided.
	RemoteAddr  string         // Origin network address.
	UserAgent   string         // Origin agent string.
	Outcome     AttemptOutcome // SUCCESS or FAILED.
}

// FailedLoginAttempt is an append-only audit fact about an authentication try
// whose identifier did not resolve to any account. It deliberately carries no
// user reference.
type FailedLoginAttempt struct {
	ID          int64     // Sequence-assigned ID; attempts are append-only.
	Email       string    // Email-shaped identifier the caller typed, if any.
	Nickname    string    // Nickname-shaped identifier the caller typed, if any.
	AttemptedAt time.Time // Instant the attempt was rejected.
	RemoteAddr  string    // Origin network address.
	UserAgent   string    // Origin agent string.
}
