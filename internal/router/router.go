package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/talentscope-api/internal/config"
	"github.com/noah-isme/talentscope-api/internal/handler"
	"github.com/noah-isme/talentscope-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReportHandler *handler.ReportHandler
	RenderHandler *handler.RenderHandler
	PrintHandler  *handler.PrintHandler
	JWTMiddleware fiber.Handler
	HealthChecks  []handler.HealthDependency
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	reports := api.Group("/reports", jwtMiddleware)
	if deps.RenderHandler != nil {
		deps.RenderHandler.Register(reports)
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(reports)
	}

	// Printable view is authorised by its single-use print token, not the session JWT.
	if deps.PrintHandler != nil {
		deps.PrintHandler.Register(app.Group("/print"))
	}
}
