package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdeskhq/helpdesk-service/internal/domain"
)

// TicketFilter captures listing parameters. Nil fields are not applied.
type TicketFilter struct {
	UserID     *int64
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	CategoryID *int64
	AssignedTo *int64
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. Mutations are fixed
// typed statements; there is no dynamic SET-clause construction.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, resolvedAt, closedAt *time.Time) error
	UpdatePriority(ctx context.Context, id int64, priority domain.TicketPriority) error
	UpdateAssignee(ctx context.Context, id int64, agentID *int64) error
	TouchUpdatedAt(ctx context.Context, id int64) error
	ListCreatedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error)
	ListByAssignee(ctx context.Context, agentID int64) ([]domain.Ticket, error)
	CountOpenByPriority(ctx context.Context) ([]domain.PriorityCount, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// Create allocates the next per-year sequence value and inserts the ticket
// in one transaction, so two concurrent creators can never receive the
// same ticket number. The unique index on ticket_number is the backstop.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	year := time.Now().Year()
	const seqQuery = `
        INSERT INTO ticket_sequences (year, last_value) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_value = ticket_sequences.last_value + 1
        RETURNING last_value`
	var seq int64
	if err := tx.QueryRow(ctx, seqQuery, year).Scan(&seq); err != nil {
		return err
	}
	ticket.TicketNumber = domain.FormatTicketNumber(year, seq)

	const insertQuery = `
        INSERT INTO tickets (ticket_number, user_id, category_id, subject, description, priority, status, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertQuery,
		ticket.TicketNumber,
		ticket.UserID,
		ticket.CategoryID,
		ticket.Subject,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const ticketColumns = `id, ticket_number, user_id, category_id, subject, description,
               priority, status, assigned_to, created_at, updated_at, resolved_at, closed_at`

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`

	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	clauses, args := filterClauses(filter)
	query := `SELECT COUNT(*) FROM tickets WHERE ` + strings.Join(clauses, " AND ")

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatus stamps resolution/closure timestamps monotonically: once
// set they are never cleared by a later transition.
func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, resolvedAt, closedAt *time.Time) error {
	const query = `
        UPDATE tickets
        SET status=$1, resolved_at=COALESCE(resolved_at, $2), closed_at=COALESCE(closed_at, $3), updated_at=NOW()
        WHERE id=$4`
	return r.exec(ctx, query, status, resolvedAt, closedAt, id)
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, id int64, priority domain.TicketPriority) error {
	const query = `UPDATE tickets SET priority=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, priority, id)
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id int64, agentID *int64) error {
	const query = `UPDATE tickets SET assigned_to=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, agentID, id)
}

func (r *ticketRepository) TouchUpdatedAt(ctx context.Context, id int64) error {
	const query = `UPDATE tickets SET updated_at=NOW() WHERE id=$1`
	return r.exec(ctx, query, id)
}

func (r *ticketRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE created_at >= $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByAssignee(ctx context.Context, agentID int64) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE assigned_to=$1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// CountOpenByPriority breaks the open workload (open and in_progress
// tickets) down by priority.
func (r *ticketRepository) CountOpenByPriority(ctx context.Context) ([]domain.PriorityCount, error) {
	const query = `
        SELECT priority, COUNT(*) FROM tickets
        WHERE status IN ('open', 'in_progress')
        GROUP BY priority`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PriorityCount
	for rows.Next() {
		var pc domain.PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			return nil, err
		}
		result = append(result, pc)
	}
	return result, rows.Err()
}

func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func filterClauses(filter TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	return clauses, args
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.UserID,
		&ticket.CategoryID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
