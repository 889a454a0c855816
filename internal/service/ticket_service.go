package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/domain"
	"github.com/helpdeskhq/helpdesk-service/internal/events"
	"github.com/helpdeskhq/helpdesk-service/internal/repository"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle and the response log.
// Every operation receives the acting user explicitly and consults the
// authorization policy before touching storage.
type TicketService struct {
	tickets    repository.TicketRepository
	responses  repository.ResponseRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	policy     *auth.Policy
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.ResponseRepository
	CategoryRepo repository.CategoryRepository
	UserRepo     repository.UserRepository
	Policy       *auth.Policy
	Dispatcher   events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CategoryID  int64
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing parameters.
type TicketListFilter struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	CategoryID *int64
	AssignedTo *int64
	Page       int
	PageSize   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		responses:  deps.ResponseRepo,
		categories: deps.CategoryRepo,
		users:      deps.UserRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket validates the input and creates a ticket owned by the
// acting user. The ticket number is allocated atomically with the insert.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)

	// Bounds count characters, not bytes.
	if n := utf8.RuneCountInString(subject); n < domain.SubjectMinLen || n > domain.SubjectMaxLen {
		return nil, apperrors.NewValidationError("subject must be between 5 and 200 characters", nil)
	}
	if n := utf8.RuneCountInString(description); n < domain.DescriptionMinLen || n > domain.DescriptionMaxLen {
		return nil, apperrors.NewValidationError("description must be between 20 and 2000 characters", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(input.Priority)})
	}

	if _, err := s.categories.GetByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": input.CategoryID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}

	ticket := &domain.Ticket{
		UserID:      actor.ID,
		CategoryID:  input.CategoryID,
		Subject:     subject,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			CategoryID:   ticket.CategoryID,
			Priority:     ticket.Priority,
			Subject:      ticket.Subject,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket the acting user may view.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}
	return ticket, nil
}

// ListTickets returns a page of tickets plus the total matching count.
// Customers only ever see their own tickets regardless of filters.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, apperrors.NewValidationError("unknown status", map[string]any{"status": string(*filter.Status)})
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, 0, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(*filter.Priority)})
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	repoFilter := repository.TicketFilter{
		Status:     filter.Status,
		Priority:   filter.Priority,
		CategoryID: filter.CategoryID,
		AssignedTo: filter.AssignedTo,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	}
	if !actor.IsStaff() {
		repoFilter.UserID = &actor.ID
	}

	total, err := s.tickets.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError(err)
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, total, nil
}

// UpdateStatus transitions a ticket to a new status. Moving to resolved
// stamps resolved_at on first transition; moving to closed stamps
// closed_at. Neither timestamp is ever cleared afterwards.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID int64, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !s.policy.CanMutateTicket(actor) {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(newStatus)})
	}
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var resolvedAt, closedAt *time.Time
	if newStatus == domain.TicketStatusResolved {
		resolvedAt = &now
	}
	if newStatus == domain.TicketStatusClosed {
		closedAt = &now
	}

	oldStatus := ticket.Status
	if err := s.tickets.UpdateStatus(ctx, ticketID, newStatus, resolvedAt, closedAt); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	updated, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return updated, nil
}

// UpdatePriority changes ticket priority.
func (s *TicketService) UpdatePriority(ctx context.Context, actor *domain.User, ticketID int64, newPriority domain.TicketPriority) (*domain.Ticket, error) {
	if !s.policy.CanMutateTicket(actor) {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if !newPriority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(newPriority)})
	}
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldPriority := ticket.Priority
	if err := s.tickets.UpdatePriority(ctx, ticketID, newPriority); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	updated, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
	return updated, nil
}

// AssignTicket assigns a ticket to a staff member, or unassigns it when
// agentID is nil.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID int64, agentID *int64) (*domain.Ticket, error) {
	if !s.policy.CanMutateTicket(actor) {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if agentID != nil {
		agent, err := s.users.GetByID(ctx, *agentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": *agentID})
			}
			return nil, apperrors.NewPersistenceError(err)
		}
		if !agent.IsStaff() {
			return nil, apperrors.NewValidationError("assignee is not staff", map[string]any{"agent_id": *agentID})
		}
		if !agent.IsActive {
			return nil, apperrors.NewConflict("assignee inactive", map[string]any{"agent_id": *agentID})
		}
	}
	if _, err := s.fetchTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	if err := s.tickets.UpdateAssignee(ctx, ticketID, agentID); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	updated, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload:  events.TicketAssignedPayload{AgentID: agentID},
	})
	return updated, nil
}

// AddResponse appends a reply or internal note to a ticket's thread. A
// public reply also touches the parent ticket's updated_at.
func (s *TicketService) AddResponse(ctx context.Context, actor *domain.User, ticketID int64, body string, internal bool) (*domain.TicketResponse, error) {
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if internal {
		if !s.policy.CanAddInternalNote(actor) {
			return nil, apperrors.NewForbidden("internal notes are staff only")
		}
	} else if !s.policy.CanReply(actor, ticket) {
		return nil, apperrors.NewForbidden("not allowed to reply to this ticket")
	}

	body = strings.TrimSpace(body)
	if internal {
		if utf8.RuneCountInString(body) < domain.InternalNoteMinLen {
			return nil, apperrors.NewValidationError("note must be at least 5 characters", nil)
		}
	} else if utf8.RuneCountInString(body) < domain.ReplyMinLen {
		return nil, apperrors.NewValidationError("response must be at least 10 characters", nil)
	}

	response := &domain.TicketResponse{
		TicketID:   ticket.ID,
		UserID:     actor.ID,
		Body:       body,
		IsInternal: internal,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if !internal {
		if err := s.tickets.TouchUpdatedAt(ctx, ticket.ID); err != nil {
			return nil, apperrors.NewPersistenceError(err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResponseAdded,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketResponseAddedPayload{
			ResponseID:  response.ID,
			IsInternal:  response.IsInternal,
			BodyPreview: bodyPreview(response.Body, 120),
		},
	})
	return response, nil
}

// ListResponses returns a ticket's thread in creation order. Internal
// entries are filtered out unless the acting user is staff.
func (s *TicketService) ListResponses(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.TicketResponse, error) {
	ticket, err := s.fetchTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanViewTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}

	responses, err := s.responses.ListByTicket(ctx, ticket.ID, s.policy.CanViewInternalNotes(actor))
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if responses == nil {
		responses = []domain.TicketResponse{}
	}
	return responses, nil
}

// ListCategories returns the category catalog.
func (s *TicketService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

// ListAgents returns active staff, used by the assignment dropdown.
func (s *TicketService) ListAgents(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	agents, err := s.users.ListStaff(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if agents == nil {
		agents = []domain.User{}
	}
	return agents, nil
}

func (s *TicketService) fetchTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func bodyPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
