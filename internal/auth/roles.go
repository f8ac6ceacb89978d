package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

// RequireStaff ensures the authenticated caller is staff. It must run after
// AuthGate.Handle.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.IsStaff() {
			return apperrors.NewForbidden("staff privileges required")
		}
		return c.Next()
	}
}
