package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mahara-dz/mahara-api/internal/domain"
	apperrors "github.com/mahara-dz/mahara-api/pkg/util/errorutil"
)

// Require checks user against the allowed roles. An empty role list admits
// any authenticated user. The user is returned unchanged on success.
func Require(user *domain.AuthenticatedUser, allowed ...domain.Role) (*domain.AuthenticatedUser, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if len(allowed) > 0 && !user.HasRole(allowed...) {
		return nil, ErrForbidden
	}
	return user, nil
}

// RequireAuthenticated admits any authenticated user.
func RequireAuthenticated() fiber.Handler {
	return gate("Insufficient role")
}

// RequireRole admits users holding one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return gate("Insufficient role", allowed...)
}

// RequireAdmin admits admins only.
func RequireAdmin() fiber.Handler {
	return gate("Admin access required", domain.RoleAdmin)
}

// RequireProvider admits providers only.
func RequireProvider() fiber.Handler {
	return gate("Provider access required", domain.RoleProvider)
}

func gate(forbiddenMessage string, allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		if _, err := Require(principal, allowed...); err != nil {
			if errors.Is(err, ErrForbidden) {
				return apperrors.NewForbidden(forbiddenMessage)
			}
			return apperrors.NewUnauthorized("Authentication required")
		}
		return c.Next()
	}
}
