package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

// RequireAuthenticated ensures a caller is logged in.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller is an agent or admin.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok || !user.IsStaff() {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller is an admin.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok || !user.IsAdmin() {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
