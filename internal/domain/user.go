package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("email already exists")
)

// Language codes supported by the platform.
const (
	LanguageArabic  = "ar"
	LanguageFrench  = "fr"
	LanguageEnglish = "en"
)

// User is the persisted account of a customer, provider or admin.
type User struct {
	ID                int64      `db:"id"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password_hash"`
	FirstName         string     `db:"first_name"`
	LastName          string     `db:"last_name"`
	Role              Role       `db:"user_type"`
	Phone             *string    `db:"phone"`
	Wilaya            *string    `db:"wilaya"`
	City              *string    `db:"city"`
	PreferredLanguage string     `db:"preferred_language"`
	VerificationToken *string    `db:"verification_token"`
	IsVerified        bool       `db:"is_verified"`
	IsActive          bool       `db:"is_active"`
	ResetToken        *string    `db:"reset_token"`
	ResetTokenExpires *time.Time `db:"reset_token_expires"`
	ProfileImage      *string    `db:"profile_image"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// AuthenticatedUser is the authorization context built for a single request
// from verified token claims and a fresh read of the user record.
type AuthenticatedUser struct {
	ID                int64
	Email             string
	Role              Role
	FirstName         string
	LastName          string
	PreferredLanguage string
	IsVerified        bool
	IsActive          bool
}

// NewAuthenticatedUser projects a stored user into a request context.
func NewAuthenticatedUser(u *User) *AuthenticatedUser {
	return &AuthenticatedUser{
		ID:                u.ID,
		Email:             u.Email,
		Role:              u.Role,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		PreferredLanguage: u.PreferredLanguage,
		IsVerified:        u.IsVerified,
		IsActive:          u.IsActive,
	}
}

// HasRole reports whether the user holds any of the given roles.
func (u *AuthenticatedUser) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
