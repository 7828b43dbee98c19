package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mahara-dz/mahara-api/internal/api/dto"
	"github.com/mahara-dz/mahara-api/internal/auth"
	"github.com/mahara-dz/mahara-api/internal/domain"
	"github.com/mahara-dz/mahara-api/internal/service"
	apperrors "github.com/mahara-dz/mahara-api/pkg/util/errorutil"
	"github.com/mahara-dz/mahara-api/pkg/validator"
)

// AuthHandler exposes the account endpoints under /api/auth.
type AuthHandler struct {
	auth     *service.AuthService
	validate *validator.Validator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, validate *validator.Validator) *AuthHandler {
	return &AuthHandler{auth: authService, validate: validate}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("Invalid payload")
	}
	if errs := h.validate.Validate(req); len(errs) > 0 {
		return apperrors.NewValidationError("Validation failed", toDetails(errs))
	}

	user, err := h.auth.RegisterUser(c.UserContext(), service.RegisterInput{
		Email:             req.Email,
		Password:          req.Password,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Role:              domain.Role(req.UserType),
		Phone:             req.Phone,
		Wilaya:            req.Wilaya,
		City:              req.City,
		PreferredLanguage: req.PreferredLanguage,
	})
	switch {
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return apperrors.NewConflict("Email already exists", nil)
	case errors.Is(err, service.ErrRoleNotRegistrable):
		return apperrors.NewValidationError("Validation failed", map[string]any{"user_type": "Invalid user type"})
	case errors.Is(err, auth.ErrPasswordTooLong):
		return apperrors.NewValidationError("Validation failed", map[string]any{"password": validator.PasswordTooLongMessage})
	case err != nil:
		return err
	}

	return success(c, http.StatusCreated, "Registration successful. Please verify your email.", fiber.Map{
		"user_id": user.ID,
		"user":    dto.NewUserResponse(user),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("Invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewBadRequest("Email and password are required")
	}

	result, err := h.auth.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized("Invalid credentials")
		}
		return err
	}

	return success(c, http.StatusOK, "Login successful", dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.NewUserResponse(result.User),
	})
}

// Logout handles POST /api/auth/logout. The token itself stays valid until
// it expires; clients are expected to discard it.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	h.auth.Logout(c.UserContext(), principal)
	return success(c, http.StatusOK, "Logged out", nil)
}

// VerifyEmail handles GET /api/auth/verify?token=.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewBadRequest("Verification token is required")
	}
	if err := h.auth.VerifyEmail(c.UserContext(), token); err != nil {
		if errors.Is(err, service.ErrInvalidVerificationToken) {
			return apperrors.NewBadRequest("Invalid or expired verification token")
		}
		return err
	}
	return success(c, http.StatusOK, "Email verified", nil)
}

// ForgotPassword handles POST /api/auth/forgot-password. The answer is the
// same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("Invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewBadRequest("Email is required")
	}
	if err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return success(c, http.StatusOK, "If the account exists, a reset link has been sent", nil)
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("Invalid payload")
	}
	if req.Token == "" || req.Password == "" {
		return apperrors.NewBadRequest("Token and new password are required")
	}
	if len(req.Password) > validator.MaxPasswordBytes {
		return apperrors.NewBadRequest(validator.PasswordTooLongMessage)
	}
	if !h.validate.ValidPassword(req.Password) {
		return apperrors.NewBadRequest("Password does not meet requirements")
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidResetToken):
			return apperrors.NewBadRequest("Invalid or expired reset token")
		case errors.Is(err, auth.ErrPasswordTooLong):
			return apperrors.NewBadRequest(validator.PasswordTooLongMessage)
		}
		return err
	}
	return success(c, http.StatusOK, "Password has been reset", nil)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}
	user, err := h.auth.CurrentUser(c.UserContext(), principal)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperrors.NewUnauthorized("Authentication required")
		}
		return err
	}
	return success(c, http.StatusOK, "Success", dto.NewUserResponse(user))
}

func toDetails(errs map[string]string) map[string]any {
	out := make(map[string]any, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
