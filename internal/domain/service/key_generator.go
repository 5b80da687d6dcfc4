package service

// KeyGenerator produces opaque single-use key values for activation and
// password reset flows. Values must be unguessable and uniformly shaped so
// a cheap syntactic check can reject garbage before any storage lookup.
type KeyGenerator interface {
	// NewKey returns a fresh, unguessable key value.
	NewKey() string

	// ValidShape reports whether the value could have been produced by
	// NewKey. It performs no storage lookup.
	ValidShape(value string) bool
}
