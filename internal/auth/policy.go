package auth

import "github.com/helpdeskhq/helpdesk-service/internal/domain"

// Policy is the authorization gate for ticket-scoped operations. Every
// check takes the acting user explicitly; there is no ambient current
// user. A false answer means the operation must not be attempted.
type Policy struct{}

// NewPolicy constructs the policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// CanViewTicket allows staff on any ticket and customers on their own.
func (p *Policy) CanViewTicket(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	if user.IsStaff() {
		return true
	}
	return ticket.UserID == user.ID
}

// CanReply mirrors view access: anyone who may see a ticket may reply.
func (p *Policy) CanReply(user *domain.User, ticket *domain.Ticket) bool {
	return p.CanViewTicket(user, ticket)
}

// CanMutateTicket covers status, priority and assignment changes.
func (p *Policy) CanMutateTicket(user *domain.User) bool {
	return user.IsStaff()
}

// CanAddInternalNote allows staff only.
func (p *Policy) CanAddInternalNote(user *domain.User) bool {
	return user.IsStaff()
}

// CanViewInternalNotes decides whether internal entries are included when
// listing a ticket's responses.
func (p *Policy) CanViewInternalNotes(user *domain.User) bool {
	return user.IsStaff()
}

// CanViewAnalytics gates the cross-agent analytics view. Admin only.
func (p *Policy) CanViewAnalytics(user *domain.User) bool {
	return user.IsAdmin()
}
