package dto

import (
	"time"

	"github.com/helpdeskhq/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CategoryID  int64                 `json:"category_id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// AssignTicketRequest payload; a nil agent id unassigns.
type AssignTicketRequest struct {
	AgentID *int64 `json:"agent_id"`
}

// CreateResponseRequest payload.
type CreateResponseRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           int64                 `json:"id"`
	TicketNumber string                `json:"ticket_number"`
	UserID       int64                 `json:"user_id"`
	CategoryID   int64                 `json:"category_id"`
	Subject      string                `json:"subject"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	AssignedTo   *int64                `json:"assigned_to"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	ResolvedAt   *time.Time            `json:"resolved_at"`
	ClosedAt     *time.Time            `json:"closed_at"`
}

// TicketDetailResponse provides full ticket info with its thread.
type TicketDetailResponse struct {
	TicketSummary
	Description string          `json:"description"`
	Responses   []ResponseEntry `json:"responses"`
}

// TicketListResponse is one page of tickets plus the total count.
type TicketListResponse struct {
	Items      []TicketSummary `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// ResponseEntry represents one thread entry.
type ResponseEntry struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	UserID     int64     `json:"user_id"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// CategoryResponse represents one catalog entry.
type CategoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewTicketSummary maps a domain ticket.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		UserID:       ticket.UserID,
		CategoryID:   ticket.CategoryID,
		Subject:      ticket.Subject,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		AssignedTo:   ticket.AssignedTo,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		ResolvedAt:   ticket.ResolvedAt,
		ClosedAt:     ticket.ClosedAt,
	}
}

// NewTicketDetail maps a domain ticket and its visible thread.
func NewTicketDetail(ticket *domain.Ticket, responses []domain.TicketResponse) TicketDetailResponse {
	entries := make([]ResponseEntry, 0, len(responses))
	for i := range responses {
		entries = append(entries, NewResponseEntry(&responses[i]))
	}
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(ticket),
		Description:   ticket.Description,
		Responses:     entries,
	}
}

// NewResponseEntry maps a domain response.
func NewResponseEntry(response *domain.TicketResponse) ResponseEntry {
	return ResponseEntry{
		ID:         response.ID,
		TicketID:   response.TicketID,
		UserID:     response.UserID,
		Body:       response.Body,
		IsInternal: response.IsInternal,
		CreatedAt:  response.CreatedAt,
	}
}
