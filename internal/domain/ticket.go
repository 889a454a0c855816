package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           int64
	TicketNumber string
	UserID       int64
	CategoryID   int64
	Subject      string
	Description  string
	Priority     TicketPriority
	Status       TicketStatus
	AssignedTo   *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
	ClosedAt     *time.Time
}

// FormatTicketNumber renders a human-readable ticket number from a year
// and a per-year sequence value, e.g. TKT2026000042.
func FormatTicketNumber(year int, seq int64) string {
	return fmt.Sprintf("TKT%d%06d", year, seq)
}

// Subject and description bounds enforced at creation.
const (
	SubjectMinLen     = 5
	SubjectMaxLen     = 200
	DescriptionMinLen = 20
	DescriptionMaxLen = 2000
)
