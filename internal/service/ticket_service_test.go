package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/domain"
	"github.com/helpdeskhq/helpdesk-service/internal/events"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

type ticketFixture struct {
	svc        *TicketService
	tickets    *fakeTicketRepo
	responses  *fakeResponseRepo
	users      *fakeUserRepo
	categories *fakeCategoryRepo
	dispatcher events.Dispatcher
	published  *[]events.Event
}

func newTicketFixture() *ticketFixture {
	tickets := newFakeTicketRepo()
	responses := newFakeResponseRepo()
	users := newFakeUserRepo()
	categories := newFakeCategoryRepo(
		domain.Category{ID: 1, Name: "Billing"},
		domain.Category{ID: 2, Name: "Technical"},
	)
	dispatcher := events.NewInMemoryDispatcher()

	published := &[]events.Event{}
	record := func(_ context.Context, event events.Event) error {
		*published = append(*published, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketAssigned,
		events.EventTicketResponseAdded,
	} {
		dispatcher.Subscribe(eventType, record)
	}

	svc := NewTicketService(TicketDependencies{
		TicketRepo:   tickets,
		ResponseRepo: responses,
		CategoryRepo: categories,
		UserRepo:     users,
		Policy:       auth.NewPolicy(),
		Dispatcher:   dispatcher,
	})
	return &ticketFixture{
		svc:        svc,
		tickets:    tickets,
		responses:  responses,
		users:      users,
		categories: categories,
		dispatcher: dispatcher,
		published:  published,
	}
}

func assertDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestCreateTicketSuccess(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Help me",
		Description: "My last invoice was charged twice and I need a refund.",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority, "priority defaults to medium")
	assert.Equal(t, customer.ID, ticket.UserID)
	assert.Nil(t, ticket.AssignedTo)
	assert.Equal(t, fmt.Sprintf("TKT%d%06d", time.Now().Year(), 1), ticket.TicketNumber)

	require.Len(t, *fx.published, 1)
	assert.Equal(t, events.EventTicketCreated, (*fx.published)[0].Type)
	assert.Equal(t, ticket.ID, (*fx.published)[0].TicketID)
}

func TestCreateTicketNumbersAreSequential(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	description := "A sufficiently long description of the problem at hand."

	first, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID: 1, Subject: "First ticket", Description: description,
	})
	require.NoError(t, err)
	second, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID: 1, Subject: "Second ticket", Description: description,
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.TicketNumber, second.TicketNumber)
	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("TKT%d%06d", year, 1), first.TicketNumber)
	assert.Equal(t, fmt.Sprintf("TKT%d%06d", year, 2), second.TicketNumber)
}

func TestCreateTicketValidation(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	validDescription := "This description is long enough to pass validation."

	cases := []struct {
		name  string
		input TicketCreateInput
	}{
		{"subject too short", TicketCreateInput{CategoryID: 1, Subject: "Hi", Description: validDescription}},
		{"subject too long", TicketCreateInput{CategoryID: 1, Subject: strings.Repeat("x", 201), Description: validDescription}},
		{"description too short", TicketCreateInput{CategoryID: 1, Subject: "Printer broken", Description: "Too short"}},
		{"multibyte subject counts characters", TicketCreateInput{CategoryID: 1, Subject: strings.Repeat("日", 3), Description: validDescription}},
		{"multibyte description counts characters", TicketCreateInput{CategoryID: 1, Subject: "Printer broken", Description: strings.Repeat("語", 7)}},
		{"unknown priority", TicketCreateInput{CategoryID: 1, Subject: "Printer broken", Description: validDescription, Priority: "critical"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.CreateTicket(context.Background(), customer, tc.input)
			assertDomainErrorCode(t, err, "VALIDATION_FAILED")
		})
	}
}

func TestCreateTicketAcceptsLongMultibyteSubject(t *testing.T) {
	fx := newTicketFixture()

	// 180 characters, 540 bytes: within the 200-character cap.
	ticket, err := fx.svc.CreateTicket(context.Background(), testCustomer(1), TicketCreateInput{
		CategoryID:  1,
		Subject:     strings.Repeat("日", 180),
		Description: strings.Repeat("本", 20),
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("日", 180), ticket.Subject)
}

func TestCreateTicketUnknownCategory(t *testing.T) {
	fx := newTicketFixture()

	_, err := fx.svc.CreateTicket(context.Background(), testCustomer(1), TicketCreateInput{
		CategoryID:  99,
		Subject:     "Printer broken",
		Description: "The office printer rejects every job I send to it.",
	})
	assertDomainErrorCode(t, err, "NOT_FOUND")
}

func TestGetTicketOwnership(t *testing.T) {
	fx := newTicketFixture()
	owner := testCustomer(1)
	stranger := testCustomer(2)
	agent := testAgent(3)

	ticket, err := fx.svc.CreateTicket(context.Background(), owner, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Account locked",
		Description: "I cannot log in to my account since this morning.",
	})
	require.NoError(t, err)

	_, err = fx.svc.GetTicket(context.Background(), owner, ticket.ID)
	assert.NoError(t, err)

	_, err = fx.svc.GetTicket(context.Background(), stranger, ticket.ID)
	assertDomainErrorCode(t, err, "FORBIDDEN")

	_, err = fx.svc.GetTicket(context.Background(), agent, ticket.ID)
	assert.NoError(t, err, "staff may view any ticket")
}

func TestGetTicketNotFound(t *testing.T) {
	fx := newTicketFixture()

	_, err := fx.svc.GetTicket(context.Background(), testAgent(1), 42)
	assertDomainErrorCode(t, err, "NOT_FOUND")
}

func TestListTicketsCustomerScoped(t *testing.T) {
	fx := newTicketFixture()
	alice := testCustomer(1)
	bob := testCustomer(2)
	description := "Long enough description for the validation threshold."

	_, err := fx.svc.CreateTicket(context.Background(), alice, TicketCreateInput{CategoryID: 1, Subject: "Alice one", Description: description})
	require.NoError(t, err)
	_, err = fx.svc.CreateTicket(context.Background(), bob, TicketCreateInput{CategoryID: 1, Subject: "Bob one", Description: description})
	require.NoError(t, err)

	tickets, total, err := fx.svc.ListTickets(context.Background(), alice, TicketListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tickets, 1)
	assert.Equal(t, alice.ID, tickets[0].UserID)

	tickets, total, err = fx.svc.ListTickets(context.Background(), testAgent(3), TicketListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, tickets, 2)
}

func TestListTicketsClosedFilterOnEmptyStore(t *testing.T) {
	fx := newTicketFixture()

	closed := domain.TicketStatusClosed
	tickets, total, err := fx.svc.ListTickets(context.Background(), testAgent(1), TicketListFilter{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, tickets)
}

func TestListTicketsRejectsUnknownStatus(t *testing.T) {
	fx := newTicketFixture()

	bogus := domain.TicketStatus("archived")
	_, _, err := fx.svc.ListTickets(context.Background(), testAgent(1), TicketListFilter{Status: &bogus})
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")
}

func TestUpdateStatusStampsResolvedAt(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	agent := testAgent(2)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  2,
		Subject:     "VPN dropping",
		Description: "The VPN connection drops every fifteen minutes or so.",
	})
	require.NoError(t, err)

	updated, err := fx.svc.UpdateStatus(context.Background(), agent, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	firstResolvedAt := *updated.ResolvedAt

	// Reopening and resolving again must not move the original stamp.
	_, err = fx.svc.UpdateStatus(context.Background(), agent, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	reopened, err := fx.svc.GetTicket(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, reopened.ResolvedAt)
	assert.Equal(t, firstResolvedAt, *reopened.ResolvedAt)

	closed, err := fx.svc.UpdateStatus(context.Background(), agent, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, firstResolvedAt, *closed.ResolvedAt)
}

func TestUpdateStatusCustomerForbidden(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Wrong charge",
		Description: "I was charged for a plan that I never subscribed to.",
	})
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), customer, ticket.ID, domain.TicketStatusResolved)
	assertDomainErrorCode(t, err, "FORBIDDEN")
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	fx := newTicketFixture()
	agent := testAgent(1)

	ticket := fx.tickets.put(domain.Ticket{
		UserID: 2, CategoryID: 1, Subject: "Seeded", Description: "Seeded description",
		Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})

	_, err := fx.svc.UpdateStatus(context.Background(), agent, ticket.ID, "archived")
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")
}

func TestAssignTicket(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	admin := testAdmin(2)

	agent := fx.users.put(domain.User{FullName: "Dana Agent", Email: "dana@example.com", Role: domain.RoleAgent, IsActive: true})
	plainCustomer := fx.users.put(domain.User{FullName: "Plain Customer", Email: "pc@example.com", Role: domain.RoleCustomer, IsActive: true})

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  2,
		Subject:     "Laptop dead",
		Description: "The laptop does not power on even when plugged in.",
	})
	require.NoError(t, err)

	updated, err := fx.svc.AssignTicket(context.Background(), admin, ticket.ID, &agent.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, agent.ID, *updated.AssignedTo)

	_, err = fx.svc.AssignTicket(context.Background(), admin, ticket.ID, &plainCustomer.ID)
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")

	unassigned, err := fx.svc.AssignTicket(context.Background(), admin, ticket.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedTo)
}

func TestAssignTicketInactiveAgent(t *testing.T) {
	fx := newTicketFixture()
	admin := testAdmin(1)

	inactive := fx.users.put(domain.User{FullName: "Gone Agent", Email: "gone@example.com", Role: domain.RoleAgent, IsActive: false})
	ticket := fx.tickets.put(domain.Ticket{
		UserID: 2, CategoryID: 1, Subject: "Seeded", Description: "Seeded description",
		Priority: domain.TicketPriorityMedium, Status: domain.TicketStatusOpen,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})

	_, err := fx.svc.AssignTicket(context.Background(), admin, ticket.ID, &inactive.ID)
	assertDomainErrorCode(t, err, "CONFLICT")
}

func TestAddResponseValidation(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	agent := testAgent(2)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Slow site",
		Description: "Pages take close to thirty seconds to finish loading.",
	})
	require.NoError(t, err)

	// Internal notes have a 5 character minimum.
	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "FYI.", true)
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")

	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "FYI ok", true)
	assert.NoError(t, err)

	// Public replies have a 10 character minimum.
	_, err = fx.svc.AddResponse(context.Background(), customer, ticket.ID, "Thanks!", false)
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")

	_, err = fx.svc.AddResponse(context.Background(), customer, ticket.ID, "Thanks, that fixed it.", false)
	assert.NoError(t, err)

	// Minimums count characters: 4 multibyte characters are 12 bytes but
	// still too short for a note.
	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "メモです", true)
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")

	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, strings.Repeat("確", 5), true)
	assert.NoError(t, err)

	_, err = fx.svc.AddResponse(context.Background(), customer, ticket.ID, strings.Repeat("多", 9), false)
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")

	_, err = fx.svc.AddResponse(context.Background(), customer, ticket.ID, strings.Repeat("多", 10), false)
	assert.NoError(t, err)
}

func TestAddResponseInternalNoteCustomerForbidden(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Question",
		Description: "How do I export my data from the dashboard view?",
	})
	require.NoError(t, err)

	_, err = fx.svc.AddResponse(context.Background(), customer, ticket.ID, "a note to myself", true)
	assertDomainErrorCode(t, err, "FORBIDDEN")
}

func TestAddResponseTouchesTicketOnlyForPublicReplies(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	agent := testAgent(2)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Broken link",
		Description: "The password reset link in the email returns a 404.",
	})
	require.NoError(t, err)
	createdUpdatedAt := ticket.UpdatedAt

	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "checking with the web team", true)
	require.NoError(t, err)
	after, err := fx.svc.GetTicket(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, createdUpdatedAt, after.UpdatedAt, "internal note must not touch the ticket")

	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "We fixed the link, please retry.", false)
	require.NoError(t, err)
	after, err = fx.svc.GetTicket(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(createdUpdatedAt), "public reply must touch the ticket")
}

func TestListResponsesFiltersInternalNotes(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	agent := testAgent(2)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Refund status",
		Description: "It has been ten days and my refund has not arrived.",
	})
	require.NoError(t, err)

	_, err = fx.svc.AddResponse(context.Background(), customer, ticket.ID, "Any update on this one?", false)
	require.NoError(t, err)
	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "finance says Friday", true)
	require.NoError(t, err)
	_, err = fx.svc.AddResponse(context.Background(), agent, ticket.ID, "Refund is scheduled for Friday.", false)
	require.NoError(t, err)

	visible, err := fx.svc.ListResponses(context.Background(), customer, ticket.ID)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	for _, response := range visible {
		assert.False(t, response.IsInternal)
	}

	all, err := fx.svc.ListResponses(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListAgentsStaffOnly(t *testing.T) {
	fx := newTicketFixture()
	fx.users.put(domain.User{FullName: "Avery Agent", Email: "avery@example.com", Role: domain.RoleAgent, IsActive: true})
	fx.users.put(domain.User{FullName: "Zoe Admin", Email: "zoe@example.com", Role: domain.RoleAdmin, IsActive: true})
	fx.users.put(domain.User{FullName: "Carl Customer", Email: "carl@example.com", Role: domain.RoleCustomer, IsActive: true})
	fx.users.put(domain.User{FullName: "Former Agent", Email: "former@example.com", Role: domain.RoleAgent, IsActive: false})

	_, err := fx.svc.ListAgents(context.Background(), testCustomer(10))
	assertDomainErrorCode(t, err, "FORBIDDEN")

	agents, err := fx.svc.ListAgents(context.Background(), testAgent(11))
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "Avery Agent", agents[0].FullName)
	assert.Equal(t, "Zoe Admin", agents[1].FullName)
}

func TestStatusChangePublishesEvent(t *testing.T) {
	fx := newTicketFixture()
	customer := testCustomer(1)
	agent := testAgent(2)

	ticket, err := fx.svc.CreateTicket(context.Background(), customer, TicketCreateInput{
		CategoryID:  1,
		Subject:     "Export fails",
		Description: "The CSV export times out for date ranges over a month.",
	})
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), agent, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	require.Len(t, *fx.published, 2)
	event := (*fx.published)[1]
	assert.Equal(t, events.EventTicketStatusChanged, event.Type)
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusOpen, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusInProgress, payload.NewStatus)
}
