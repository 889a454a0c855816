package domain

import "time"

// TicketResponse is an append-only entry in a ticket's thread. Internal
// entries are visible to staff only.
type TicketResponse struct {
	ID         int64
	TicketID   int64
	UserID     int64
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}

// Minimum body lengths; replies and internal notes carry different policy
// minimums.
const (
	ReplyMinLen        = 10
	InternalNoteMinLen = 5
)
