// Package delivery defines the contract every transport adapter satisfies.
package delivery

import "context"

// Delivery is a long-running transport surface, collected by fx under the
// "deliveries" group and served from main.
type Delivery interface {
	// Serve blocks, accepting work until the process shuts down.
	Serve(ctx context.Context) error
}
