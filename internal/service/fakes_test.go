package service

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helpdeskhq/helpdesk-service/internal/domain"
	"github.com/helpdeskhq/helpdesk-service/internal/repository"
)

// fakeTicketRepo is an in-memory TicketRepository mirroring the Postgres
// implementation's semantics, including per-year ticket numbering and the
// never-clear rule for resolution timestamps.
type fakeTicketRepo struct {
	nextID  int64
	seq     map[int]int64
	tickets map[int64]*domain.Ticket
	clock   time.Time
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		seq:     map[int]int64{},
		tickets: map[int64]*domain.Ticket{},
		clock:   time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTicketRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	year := time.Now().Year()
	f.seq[year]++
	ticket.TicketNumber = domain.FormatTicketNumber(year, f.seq[year])

	f.nextID++
	ticket.ID = f.nextID
	now := f.tick()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	stored := *ticket
	f.tickets[ticket.ID] = &stored
	return nil
}

// put seeds a ticket directly, bypassing numbering. Used by tests that
// need full control over timestamps and status.
func (f *fakeTicketRepo) put(ticket domain.Ticket) *domain.Ticket {
	if ticket.ID == 0 {
		f.nextID++
		ticket.ID = f.nextID
	}
	if ticket.TicketNumber == "" {
		f.seq[ticket.CreatedAt.Year()]++
		ticket.TicketNumber = domain.FormatTicketNumber(ticket.CreatedAt.Year(), f.seq[ticket.CreatedAt.Year()])
	}
	f.tickets[ticket.ID] = &ticket
	return &ticket
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) matches(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.UserID != nil && ticket.UserID != *filter.UserID {
		return false
	}
	if filter.Status != nil && ticket.Status != *filter.Status {
		return false
	}
	if filter.Priority != nil && ticket.Priority != *filter.Priority {
		return false
	}
	if filter.CategoryID != nil && ticket.CategoryID != *filter.CategoryID {
		return false
	}
	if filter.AssignedTo != nil {
		if ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo {
			return false
		}
	}
	return true
}

func (f *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if f.matches(ticket, filter) {
			result = append(result, *ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	count := 0
	for _, ticket := range f.tickets {
		if f.matches(ticket, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeTicketRepo) UpdateStatus(_ context.Context, id int64, status domain.TicketStatus, resolvedAt, closedAt *time.Time) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	if ticket.ResolvedAt == nil {
		ticket.ResolvedAt = resolvedAt
	}
	if ticket.ClosedAt == nil {
		ticket.ClosedAt = closedAt
	}
	ticket.UpdatedAt = f.tick()
	return nil
}

func (f *fakeTicketRepo) UpdatePriority(_ context.Context, id int64, priority domain.TicketPriority) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Priority = priority
	ticket.UpdatedAt = f.tick()
	return nil
}

func (f *fakeTicketRepo) UpdateAssignee(_ context.Context, id int64, agentID *int64) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.AssignedTo = agentID
	ticket.UpdatedAt = f.tick()
	return nil
}

func (f *fakeTicketRepo) TouchUpdatedAt(_ context.Context, id int64) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = f.tick()
	return nil
}

func (f *fakeTicketRepo) ListCreatedSince(_ context.Context, since time.Time) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if !ticket.CreatedAt.Before(since) {
			result = append(result, *ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeTicketRepo) ListByAssignee(_ context.Context, agentID int64) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.AssignedTo != nil && *ticket.AssignedTo == agentID {
			result = append(result, *ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeTicketRepo) CountOpenByPriority(_ context.Context) ([]domain.PriorityCount, error) {
	counts := map[domain.TicketPriority]int{}
	for _, ticket := range f.tickets {
		if ticket.Status == domain.TicketStatusOpen || ticket.Status == domain.TicketStatusInProgress {
			counts[ticket.Priority]++
		}
	}
	var result []domain.PriorityCount
	for _, priority := range []domain.TicketPriority{
		domain.TicketPriorityLow,
		domain.TicketPriorityMedium,
		domain.TicketPriorityHigh,
		domain.TicketPriorityUrgent,
	} {
		if counts[priority] > 0 {
			result = append(result, domain.PriorityCount{Priority: priority, Count: counts[priority]})
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*domain.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.nextID++
	user.ID = f.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListStaff(_ context.Context) ([]domain.User, error) {
	return f.listStaff(true), nil
}

func (f *fakeUserRepo) ListAllStaff(_ context.Context) ([]domain.User, error) {
	return f.listStaff(false), nil
}

func (f *fakeUserRepo) listStaff(activeOnly bool) []domain.User {
	var result []domain.User
	for _, user := range f.users {
		if !user.Role.IsStaff() {
			continue
		}
		if activeOnly && !user.IsActive {
			continue
		}
		result = append(result, *user)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FullName < result[j].FullName
	})
	return result
}

func (f *fakeUserRepo) put(user domain.User) *domain.User {
	if user.ID == 0 {
		f.nextID++
		user.ID = f.nextID
	}
	f.users[user.ID] = &user
	return &user
}

type fakeCategoryRepo struct {
	categories []domain.Category
}

func newFakeCategoryRepo(categories ...domain.Category) *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: categories}
}

func (f *fakeCategoryRepo) List(_ context.Context) ([]domain.Category, error) {
	result := make([]domain.Category, len(f.categories))
	copy(result, f.categories)
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	for _, category := range f.categories {
		if category.ID == id {
			copied := category
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeResponseRepo struct {
	nextID    int64
	responses []domain.TicketResponse
	clock     time.Time
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{clock: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeResponseRepo) Create(_ context.Context, response *domain.TicketResponse) error {
	f.nextID++
	response.ID = f.nextID
	f.clock = f.clock.Add(time.Second)
	response.CreatedAt = f.clock
	f.responses = append(f.responses, *response)
	return nil
}

func (f *fakeResponseRepo) ListByTicket(_ context.Context, ticketID int64, includeInternal bool) ([]domain.TicketResponse, error) {
	var result []domain.TicketResponse
	for _, response := range f.responses {
		if response.TicketID != ticketID {
			continue
		}
		if response.IsInternal && !includeInternal {
			continue
		}
		result = append(result, response)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func testCustomer(id int64) *domain.User {
	return &domain.User{ID: id, FullName: "Customer", Email: "customer@example.com", Role: domain.RoleCustomer, IsActive: true}
}

func testAgent(id int64) *domain.User {
	return &domain.User{ID: id, FullName: "Agent", Email: "agent@example.com", Role: domain.RoleAgent, IsActive: true}
}

func testAdmin(id int64) *domain.User {
	return &domain.User{ID: id, FullName: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, IsActive: true}
}
