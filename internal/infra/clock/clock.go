// Package clock provides the system implementation of the Clock domain service.
package clock

import (
	"time"

	"gatekeeper/internal/domain/service"
)

// systemClock reads the wall clock.
type systemClock struct{}

// NewSystemClock is the constructor for systemClock.
func NewSystemClock() service.Clock {
	return &systemClock{}
}

// Now returns the current wall-clock time.
func (systemClock) Now() time.Time {
	return time.Now()
}
