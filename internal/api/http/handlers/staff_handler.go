package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskhq/helpdesk-service/internal/api/dto"
	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/service"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

// StaffHandler exposes the management endpoints available to agents and
// admins: ticket mutations, the staff dashboard and the agent directory.
type StaffHandler struct {
	tickets   *service.TicketService
	analytics *service.AnalyticsService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(tickets *service.TicketService, analytics *service.AnalyticsService) *StaffHandler {
	return &StaffHandler{tickets: tickets, analytics: analytics}
}

// UpdateStatus PATCH /staff/tickets/:id/status.
func (h *StaffHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.UpdateStatus(c.UserContext(), actor, ticketID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// UpdatePriority PATCH /staff/tickets/:id/priority.
func (h *StaffHandler) UpdatePriority(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.UpdatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.UpdatePriority(c.UserContext(), actor, ticketID, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Assign PATCH /staff/tickets/:id/assignee. A null agent_id unassigns.
func (h *StaffHandler) Assign(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.AssignTicket(c.UserContext(), actor, ticketID, req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Dashboard GET /staff/dashboard. Whole-store counters plus the open
// workload broken down by priority.
func (h *StaffHandler) Dashboard(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	stats, err := h.analytics.StaffDashboard(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Agents GET /staff/agents. Active staff for the assignment picker.
func (h *StaffHandler) Agents(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	agents, err := h.tickets.ListAgents(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewUserResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
