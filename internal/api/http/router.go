package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mahara-dz/mahara-api/internal/api/http/handlers"
	"github.com/mahara-dz/mahara-api/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every /api route runs the authenticator;
// the role gates decide which of them actually need a principal.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/verify", cfg.Auth.VerifyEmail)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.Get("/metrics", cfg.Admin.Metrics)
	admin.Patch("/users/:id/active", cfg.Admin.SetUserActive)
}
