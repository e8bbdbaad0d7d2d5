package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/secureshare/portal/internal/access"
	"github.com/secureshare/portal/internal/api/http/handlers"
	"github.com/secureshare/portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Files          *handlers.FilesHandler
	Download       *handlers.DownloadHandler
	AuthMiddleware *auth.AuthMiddleware
	Router         *access.Router
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/verify", cfg.Auth.Verify)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)

	app.Get("/session", cfg.AuthMiddleware.Optional, cfg.Auth.Session)

	files := app.Group("/files", cfg.AuthMiddleware.Handle)
	files.Get("", auth.RequireCapability(cfg.Router, access.ActionListFiles), cfg.Files.List)
	files.Post("", auth.RequireCapability(cfg.Router, access.ActionUpload), cfg.Files.Upload)
	files.Post("/:id/link", auth.RequireCapability(cfg.Router, access.ActionIssueLink), cfg.Files.IssueLink)
	files.Get("/:id/link", auth.RequireCapability(cfg.Router, access.ActionIssueLink), cfg.Files.CurrentLink)

	app.Get("/download/:token", cfg.Download.Download)
}
