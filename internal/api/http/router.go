package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Profile        *handlers.ProfileHandler
	AuthMiddleware *auth.AuthMiddleware
	Limiter        RateChecker
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	strict := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.Limiter != nil {
		app.Use(RateLimit(cfg.Limiter, ratelimit.PolicyGeneral))
		strict = RateLimit(cfg.Limiter, ratelimit.PolicyLogin)
	}

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", strict, cfg.Auth.Register)
	authGroup.Post("/login", strict, cfg.Auth.Login)
	authGroup.Get("/verify", cfg.Auth.Verify)
	authGroup.Post("/password-reset-request", strict, cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password-reset", strict, cfg.Auth.ResetPassword)

	profile := app.Group("/profile", cfg.AuthMiddleware.Handle)
	profile.Get("", cfg.Profile.Get)
	profile.Put("", cfg.Profile.Update)
	profile.Post("/password", strict, cfg.Profile.ChangePassword)
}
