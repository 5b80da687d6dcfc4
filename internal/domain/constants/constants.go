// Package constants holds shared domain-level constant values.
package constants

const (
	// PubSubProviderLocal selects the local HTTP event publisher.
	PubSubProviderLocal = "local"
	// PubSubProviderGoogle selects the Google Pub/Sub event publisher.
	PubSubProviderGoogle = "google"
)
