package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/urbanecho/civic-service/internal/api/http/handlers"
	"github.com/urbanecho/civic-service/internal/auth"
	"github.com/urbanecho/civic-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Problems       *handlers.ProblemsHandler
	CivicCard      *handlers.CivicCardHandler
	Rewards        *handlers.RewardsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	// Public catalog and the merchant-facing code check.
	api.Get("/rewards", cfg.Rewards.List)
	api.Get("/rewards/:id", cfg.Rewards.Get)
	api.Post("/redemptions/validate", cfg.Rewards.Validate)

	authed := api.Group("", cfg.AuthMiddleware.Handle)
	ngoOnly := auth.RequireRole(domain.RoleNGO)

	authed.Post("/problems", cfg.Problems.Create)
	authed.Get("/problems", cfg.Problems.List)
	authed.Get("/problems/:id", cfg.Problems.Get)
	authed.Post("/problems/:id/upvote", cfg.Problems.Upvote)
	authed.Post("/problems/:id/assign", ngoOnly, cfg.Problems.Assign)
	authed.Post("/problems/:id/verify", ngoOnly, cfg.Problems.Verify)
	authed.Post("/problems/:id/submit", ngoOnly, cfg.Problems.Submit)

	authed.Post("/rewards", ngoOnly, cfg.Rewards.Create)
	authed.Post("/rewards/:id/redeem", cfg.Rewards.Redeem)
	authed.Get("/redemptions/mine", cfg.Rewards.MyCodes)

	authed.Get("/civic-card", cfg.CivicCard.Get)
	authed.Get("/civic-card/transactions", cfg.CivicCard.Transactions)
	authed.Get("/civic-card/stats", cfg.CivicCard.Stats)
}
