package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskhq/helpdesk-service/internal/api/http/handlers"
	"github.com/helpdeskhq/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Staff          *handlers.StaffHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/categories", cfg.Tickets.Categories)
	protected.Get("/dashboard", cfg.Tickets.Dashboard)
	protected.Patch("/profile", cfg.Auth.UpdateProfile)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/responses", cfg.Tickets.AddResponse)

	staff := protected.Group("/staff", auth.RequireStaff())
	staff.Get("/dashboard", cfg.Staff.Dashboard)
	staff.Get("/agents", cfg.Staff.Agents)
	staff.Patch("/tickets/:id/status", cfg.Staff.UpdateStatus)
	staff.Patch("/tickets/:id/priority", cfg.Staff.UpdatePriority)
	staff.Patch("/tickets/:id/assignee", cfg.Staff.Assign)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.Get("/analytics", cfg.Analytics.Report)
}
