package middleware

import (
	"net/http"
	"slices"
	"strings"

	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware provides middleware for access token authentication and authorization.
type AuthMiddleware struct {
	codec    service.TokenCodec
	accounts usecase.AccountUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(codec service.TokenCodec, accounts usecase.AccountUsecase) *AuthMiddleware {
	return &AuthMiddleware{codec: codec, accounts: accounts}
}

// Authenticate is the core middleware function that validates the access token.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authorization header is missing"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token format, must be Bearer token"})
		}

		claims, err := m.codec.Verify(tokenString)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		// Set user info on the context for handlers to use
		c.Set("userID", claims.UserID)
		c.Set("roles", claims.Roles)

		return next(c)
	}
}

// RequireRole is a middleware factory that checks if the user has a specific role.
// It must be used AFTER the Authenticate middleware.
func (m *AuthMiddleware) RequireRole(requiredRole entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rolesVal := c.Get("roles")
			roles, ok := rolesVal.([]string)
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied: role information missing"})
			}

			if !slices.Contains(roles, requiredRole.String()) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied: require '" + requiredRole.String() + "' role"})
			}

			return next(c)
		}
	}
}

// RequireActiveAccount re-reads the account behind a valid token and rejects
// the request when the account has since been disabled. Tokens outlive an
// administrative disable, so sensitive routes check the stored flags instead
// of trusting the token alone. Must be used AFTER Authenticate.
func (m *AuthMiddleware) RequireActiveAccount(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := c.Get("userID").(uuid.UUID)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "User ID missing from token"})
		}

		identity, err := m.accounts.GetByID(c.Request().Context(), userID)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Account no longer exists"})
		}

		if !identity.CanLogin() {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Account is disabled"})
		}

		return next(c)
	}
}
