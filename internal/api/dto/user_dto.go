package dto

import (
	"time"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,password"`
	FirstName         string `json:"first_name" validate:"required,min=2"`
	LastName          string `json:"last_name" validate:"required,min=2"`
	UserType          string `json:"user_type" validate:"omitempty,oneof=customer provider"`
	Phone             string `json:"phone" validate:"omitempty,dzphone"`
	Wilaya            string `json:"wilaya"`
	City              string `json:"city"`
	PreferredLanguage string `json:"preferred_language" validate:"omitempty,oneof=ar fr en"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest starts account recovery.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes account recovery.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// AuthResponse is returned by login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public projection of an account; secrets never leave
// the service.
type UserResponse struct {
	ID                int64       `json:"id"`
	Email             string      `json:"email"`
	FirstName         string      `json:"first_name"`
	LastName          string      `json:"last_name"`
	UserType          domain.Role `json:"user_type"`
	Phone             *string     `json:"phone,omitempty"`
	Wilaya            *string     `json:"wilaya,omitempty"`
	City              *string     `json:"city,omitempty"`
	PreferredLanguage string      `json:"preferred_language"`
	ProfileImage      *string     `json:"profile_image,omitempty"`
	IsVerified        bool        `json:"is_verified"`
	IsActive          bool        `json:"is_active"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewUserResponse projects a stored user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		UserType:          u.Role,
		Phone:             u.Phone,
		Wilaya:            u.Wilaya,
		City:              u.City,
		PreferredLanguage: u.PreferredLanguage,
		ProfileImage:      u.ProfileImage,
		IsVerified:        u.IsVerified,
		IsActive:          u.IsActive,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}
