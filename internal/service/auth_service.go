package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/config"
	"github.com/helpdeskhq/helpdesk-service/internal/domain"
	"github.com/helpdeskhq/helpdesk-service/internal/repository"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,15}$`)
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// RegisterInput describes account creation payload.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Phone    *string
	Role     domain.Role
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// RegisterUser creates a new account after validating the signup fields.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if utf8.RuneCountInString(fullName) < 3 {
		return nil, apperrors.NewValidationError("full name must be at least 3 characters", nil)
	}
	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewValidationError("invalid email address", nil)
	}
	if utf8.RuneCountInString(input.Password) < 6 {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}
	var phone *string
	if input.Phone != nil && strings.TrimSpace(*input.Phone) != "" {
		trimmed := strings.TrimSpace(*input.Phone)
		if !phonePattern.MatchString(trimmed) {
			return nil, apperrors.NewValidationError("invalid phone number", nil)
		}
		phone = &trimmed
	}
	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(input.Role)})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewPersistenceError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	return user, nil
}

// ProfileUpdateInput describes self-service profile changes. Nil fields
// are left untouched; changing the password requires the current one.
type ProfileUpdateInput struct {
	FullName        *string
	Phone           *string
	CurrentPassword string
	NewPassword     *string
}

// UpdateProfile lets the acting user change their own name, phone and
// password. Email and role are not self-serviceable.
func (s *AuthService) UpdateProfile(ctx context.Context, actor *domain.User, input ProfileUpdateInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": actor.ID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}

	if input.FullName != nil {
		fullName := strings.TrimSpace(*input.FullName)
		if utf8.RuneCountInString(fullName) < 3 {
			return nil, apperrors.NewValidationError("full name must be at least 3 characters", nil)
		}
		user.FullName = fullName
	}
	if input.Phone != nil {
		trimmed := strings.TrimSpace(*input.Phone)
		if trimmed == "" {
			user.Phone = nil
		} else {
			if !phonePattern.MatchString(trimmed) {
				return nil, apperrors.NewValidationError("invalid phone number", nil)
			}
			user.Phone = &trimmed
		}
	}
	if input.NewPassword != nil {
		if err := auth.ComparePassword(user.PasswordHash, input.CurrentPassword); err != nil {
			return nil, apperrors.NewUnauthorized("current password incorrect")
		}
		if utf8.RuneCountInString(*input.NewPassword) < 6 {
			return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
		}
		hash, err := auth.HashPassword(*input.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return user, nil
}

// Authenticate verifies credentials and issues an access token.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewPersistenceError(err)
	}
	if !user.IsActive {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
