package service

import "time"

// Clock supplies the current time. All expiry and retention decisions go
// through it so tests can simulate the passage of time.
type Clock interface {
	Now() time.Time
}
