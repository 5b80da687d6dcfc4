// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus reflects the lifecycle of one successful login.
type SessionStatus string

const (
	// SessionActive marks a session still considered live.
	SessionActive SessionStatus = "ACTIVE"
	// SessionExpired marks a session aged out by a retention sweep.
	SessionExpired SessionStatus = "EXPIRED"
	// SessionLoggedOut marks a session closed by an explicit logout.
	SessionLoggedOut SessionStatus = "LOGGED_OUT"
)

// Session records the lifetime of one successful login. It is created by the
// authentication orchestrator, closed by logout, or aged out externally.
type Session struct {
	ID         uuid.UUID     // Opaque session identifier.
	UserID     uuid.UUID     // The account this session belongs to.
	StartedAt  time.Time     // Instant the login succeeded.
	EndedAt    *time.Time    // Set when the session is closed or expired.
	RemoteAddr string        // Origin network address of the login.
	UserAgent  string        // Origin agent string of the login.
	Status     SessionStatus // ACTIVE, EXPIRED, or LOGGED_OUT.
}
