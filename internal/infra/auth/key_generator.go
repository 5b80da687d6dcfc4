// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"github.com/google/uuid"

	"gatekeeper/internal/domain/service"
)

// uuidKeyGenerator produces one-time key values backed by random UUIDs.
// 122 bits of randomness makes values unguessable, and the fixed textual
// shape lets callers reject malformed input before any storage lookup.
type uuidKeyGenerator struct{}

// NewUUIDKeyGenerator is the constructor for uuidKeyGenerator.
func NewUUIDKeyGenerator() service.KeyGenerator {
	return &uuidKeyGenerator{}
}

// NewKey returns a fresh random key value.
func (g *uuidKeyGenerator) NewKey() string {
	return uuid.NewString()
}

// ValidShape reports whether the value has the canonical key shape.
func (g *uuidKeyGenerator) ValidShape(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}
