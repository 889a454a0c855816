package domain

import "time"

// Role enumerates user capability levels.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role grants ticket-handling access.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// IsAdmin reports whether the role grants analytics access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User is the domain model for every account: customers who file tickets
// and the staff who handle them.
type User struct {
	ID           int64
	FullName     string
	Email        string
	PasswordHash string
	Phone        *string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user may handle any ticket.
func (u *User) IsStaff() bool {
	return u != nil && u.Role.IsStaff()
}

// IsAdmin reports whether the user may view cross-agent analytics.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role.IsAdmin()
}
