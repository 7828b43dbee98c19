package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mahara-dz/mahara-api/internal/domain"
	apperrors "github.com/mahara-dz/mahara-api/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// fiberRequest adapts a fiber context to Request.
type fiberRequest struct {
	c *fiber.Ctx
}

func (r fiberRequest) Header(name string) string {
	return r.c.Get(name)
}

// AuthMiddleware resolves the caller for every request. It never rejects;
// the role gates decide what anonymous callers may reach.
type AuthMiddleware struct {
	authenticator *Authenticator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authenticator *Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Handle stores the authenticated user, if any, in the request locals.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	user, err := m.authenticator.Authenticate(c.UserContext(), fiberRequest{c: c})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if user != nil {
		c.Locals(principalKey, user)
	}
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated user.
func PrincipalFromContext(c *fiber.Ctx) (*domain.AuthenticatedUser, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.AuthenticatedUser)
	return principal, ok && principal != nil
}
