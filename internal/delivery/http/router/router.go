// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"gatekeeper/internal/delivery/http/middleware"
	"gatekeeper/internal/delivery/http/router/handler"
	"gatekeeper/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AccountHandler *handler.AccountHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		accountHandler: params.AccountHandler,
		adminHandler:   params.AdminHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Auth routes, no token required
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.POST("/activate", r.authHandler.Activate)
		authGroup.POST("/password/reset", r.authHandler.RequestPasswordReset)
		authGroup.POST("/password/reset/confirm", r.authHandler.ConfirmPasswordReset)
	}

	// Self-service account routes, token required. Password and email
	// changes additionally re-check the stored account flags.
	accountGroup := e.Group("/account")
	accountGroup.Use(r.authMiddleware.Authenticate)
	{
		accountGroup.GET("/profile", r.accountHandler.GetProfile)
		accountGroup.GET("/sessions", r.accountHandler.ListSessions)
		accountGroup.DELETE("/sessions/:id", r.accountHandler.CloseSession)
		accountGroup.PUT("/language", r.accountHandler.UpdateLanguage)

		sensitive := accountGroup.Group("", r.authMiddleware.RequireActiveAccount)
		sensitive.PUT("/nickname", r.accountHandler.UpdateNickname)
		sensitive.PUT("/email", r.accountHandler.UpdateEmail)
		sensitive.PUT("/password", r.accountHandler.ChangePassword)
	}

	// Administrator routes, token plus ROLE_ADMIN required.
	adminGroup := e.Group("/admin")
	adminGroup.Use(r.authMiddleware.Authenticate)
	adminGroup.Use(r.authMiddleware.RequireRole(entity.RoleAdmin))
	{
		adminGroup.GET("/audit/attempts", r.adminHandler.ListAttempts)
		adminGroup.GET("/audit/attempts/count", r.adminHandler.CountAttempts)
		adminGroup.GET("/audit/failures", r.adminHandler.CountRecentFailures)
		adminGroup.DELETE("/audit/attempts", r.adminHandler.PurgeAttempts)

		adminGroup.GET("/accounts/:id", r.adminHandler.GetAccount)
		adminGroup.PUT("/accounts/:id/enabled", r.adminHandler.SetEnabled)
		adminGroup.PUT("/accounts/:id/roles", r.adminHandler.SetRoles)

		adminGroup.POST("/tokens/revoke-all", r.adminHandler.RevokeAllTokens)
		adminGroup.POST("/sessions/expire", r.adminHandler.ExpireSessions)
	}
}
