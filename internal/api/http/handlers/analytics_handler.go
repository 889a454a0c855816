package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/service"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

// AnalyticsHandler exposes the admin reporting endpoint.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Report GET /admin/analytics?days=N.
func (h *AnalyticsHandler) Report(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	// Absent or zero means the configured default window; the service
	// validates the range.
	report, err := h.analytics.Report(c.UserContext(), actor, c.QueryInt("days", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
