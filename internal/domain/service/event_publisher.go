package service

import (
	"context"
)

// Auth event types published on the message queue for downstream consumers
// (mailers, anomaly detection, analytics).
const (
	EventAccountRegistered      = "account.registered"
	EventAccountActivated       = "account.activated"
	EventPasswordResetRequested = "password.reset_requested"
	EventPasswordResetCompleted = "password.reset_completed"
	EventLoginSucceeded         = "login.succeeded"
	EventLoginFailed            = "login.failed"
)

// AuthEvent represents an authentication lifecycle event for async processing
type AuthEvent struct {
	RequestID  string `json:"request_id,omitempty"` // For distributed tracing
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	KeyValue   string `json:"key_value,omitempty"` // One-time key for activation/reset mails
	RemoteAddr string `json:"remote_addr,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishAuthEvent publishes an auth lifecycle event for async processing
	PublishAuthEvent(ctx context.Context, event *AuthEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
