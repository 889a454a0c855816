package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdeskhq/helpdesk-service/internal/domain"
)

// ResponseRepository manages the append-only ticket response log.
type ResponseRepository interface {
	Create(ctx context.Context, response *domain.TicketResponse) error
	ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketResponse, error)
}

type responseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository builds repository.
func NewResponseRepository(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepository{pool: pool}
}

func (r *responseRepository) Create(ctx context.Context, response *domain.TicketResponse) error {
	const query = `
        INSERT INTO ticket_responses (ticket_id, user_id, body, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		response.TicketID,
		response.UserID,
		response.Body,
		response.IsInternal,
	).Scan(&response.ID, &response.CreatedAt)
}

func (r *responseRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketResponse, error) {
	query := `
        SELECT id, ticket_id, user_id, body, is_internal, created_at
        FROM ticket_responses WHERE ticket_id=$1`
	if !includeInternal {
		query += ` AND is_internal = FALSE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketResponse
	for rows.Next() {
		var response domain.TicketResponse
		if err := rows.Scan(
			&response.ID,
			&response.TicketID,
			&response.UserID,
			&response.Body,
			&response.IsInternal,
			&response.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, response)
	}
	return result, rows.Err()
}
