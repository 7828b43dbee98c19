package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mahara-dz/mahara-api/internal/api/dto"
	"github.com/mahara-dz/mahara-api/internal/auth"
	"github.com/mahara-dz/mahara-api/internal/domain"
	"github.com/mahara-dz/mahara-api/internal/observability"
	"github.com/mahara-dz/mahara-api/internal/service"
	apperrors "github.com/mahara-dz/mahara-api/pkg/util/errorutil"
)

// AdminHandler serves the admin-only endpoints.
type AdminHandler struct {
	auth    *service.AuthService
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{auth: authService, metrics: metrics}
}

// Metrics handles GET /api/admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return success(c, http.StatusOK, "Success", h.metrics.Snapshot())
}

// SetUserActive handles PATCH /api/admin/users/:id/active.
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	admin, _ := auth.PrincipalFromContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return apperrors.NewBadRequest("Invalid user id")
	}
	var req dto.SetActiveRequest
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return apperrors.NewBadRequest("Field active is required")
	}

	user, err := h.auth.SetUserActive(c.UserContext(), admin, int64(id), *req.Active)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewNotFound("User", nil)
	case errors.Is(err, service.ErrSelfDeactivation):
		return apperrors.NewBadRequest(err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return apperrors.NewUnauthorized("Authentication required")
	case errors.Is(err, auth.ErrForbidden):
		return apperrors.NewForbidden("Admin access required")
	case err != nil:
		return err
	}
	return success(c, http.StatusOK, "User updated", dto.NewUserResponse(user))
}
