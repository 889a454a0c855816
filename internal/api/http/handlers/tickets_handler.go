package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskhq/helpdesk-service/internal/api/dto"
	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/domain"
	"github.com/helpdeskhq/helpdesk-service/internal/service"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle and thread endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	analytics *service.AnalyticsService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, analytics *service.AnalyticsService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, analytics: analytics}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		CategoryID:  req.CategoryID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// List GET /tickets. Customers only ever see their own tickets; staff see
// everything, optionally narrowed by the query filters.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := service.TicketListFilter{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 10),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := domain.TicketPriority(raw)
		filter.Priority = &priority
	}
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid category_id", nil)
		}
		filter.CategoryID = &id
	}
	if raw := c.Query("assigned_to"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid assigned_to", nil)
		}
		filter.AssignedTo = &id
	}

	tickets, total, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:      items,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}})
}

// Get GET /tickets/:id. Returns the ticket plus its visible thread;
// internal notes are filtered out for customers.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	responses, err := h.tickets.ListResponses(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, responses)})
}

// AddResponse POST /tickets/:id/responses.
func (h *TicketsHandler) AddResponse(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	response, err := h.tickets.AddResponse(c.UserContext(), actor, ticketID, req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewResponseEntry(response)})
}

// Categories GET /categories.
func (h *TicketsHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.tickets.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		items = append(items, dto.CategoryResponse{ID: cat.ID, Name: cat.Name})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Dashboard GET /dashboard. Summarizes the acting user's own tickets.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	stats, err := h.analytics.CustomerDashboard(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}
