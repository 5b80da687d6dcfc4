// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatekeeper/config"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// jwtCodec is a concrete implementation of the TokenCodec interface using the JWT standard.
type jwtCodec struct {
	secret    string        // Secret key for signing access tokens.
	accessTTL time.Duration // Default time-to-live for access tokens.
	clock     service.Clock // Time source for issuance and expiry checks.
}

// NewJWTCodec is the constructor for jwtCodec.
// It takes configuration values to create a new token codec instance.
func NewJWTCodec(cfg *config.Config, clock service.Clock) (service.TokenCodec, error) {
	if cfg.SecretKey.Access == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	accessTTL := cfg.Token.AccessTTL
	if accessTTL <= 0 {
		accessTTL = time.Minute * 15
	}
	return &jwtCodec{
		secret:    cfg.SecretKey.Access,
		accessTTL: accessTTL,
		clock:     clock,
	}, nil
}

// Issue creates a signed token carrying the subject, roles, and expiry.
func (c *jwtCodec) Issue(subjectID uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := c.clock.Now()
	claims := jwt.MapClaims{
		"sub": subjectID.String(),    // Subject (who the token is for)
		"iat": now.Unix(),            // Issued At
		"exp": now.Add(ttl).Unix(),   // Expiration Time
	}
	if roles != nil {
		claims["roles"] = roles
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks signature and expiry and extracts the claims. Failures are
// classified so callers can distinguish a stale token from a forged one.
func (c *jwtCodec) Verify(tokenString string) (*service.Claims, error) {
	if tokenString == "" {
		return nil, domainerrors.ErrTokenEmpty
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(c.secret), nil
	}, jwt.WithTimeFunc(c.clock.Now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domainerrors.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, domainerrors.ErrTokenSignature
		default:
			return nil, domainerrors.ErrTokenMalformed
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domainerrors.ErrTokenMalformed
	}

	sub, err := mapClaims.GetSubject()
	if err != nil {
		return nil, domainerrors.ErrTokenMalformed
	}
	subjectID, err := uuid.Parse(sub)
	if err != nil {
		return nil, domainerrors.ErrTokenMalformed
	}

	claims := &service.Claims{UserID: subjectID}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if raw, ok := mapClaims["roles"].([]any); ok {
		roles := make([]string, 0, len(raw))
		for _, r := range raw {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		claims.Roles = roles
	}

	return claims, nil
}

// AccessTokenTTL returns the configured lifetime for access tokens.
func (c *jwtCodec) AccessTokenTTL() time.Duration {
	return c.accessTTL
}
