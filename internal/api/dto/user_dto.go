package dto

import (
	"time"

	"github.com/helpdeskhq/helpdesk-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone,omitempty"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest payload; omitted fields stay unchanged, an empty
// phone clears it.
type UpdateProfileRequest struct {
	FullName        *string `json:"full_name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     *string `json:"new_password,omitempty"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        int64       `json:"id"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	Phone     *string     `json:"phone,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuthResponse carries the issued token.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// NewUserResponse maps a domain user, omitting credentials.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
