package events

import (
	"time"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventUserLoggedIn           EventType = "user_logged_in"
	EventUserLoggedOut          EventType = "user_logged_out"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordReset          EventType = "password_reset"
	EventUserActivationChanged  EventType = "user_activation_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserRegisteredPayload carries what the verification email needs.
type UserRegisteredPayload struct {
	Role              domain.Role `json:"role"`
	FirstName         string      `json:"first_name"`
	PreferredLanguage string      `json:"preferred_language"`
	VerificationToken string      `json:"-"`
}

// PasswordResetRequestedPayload carries the reset link ingredients.
type PasswordResetRequestedPayload struct {
	ResetToken        string    `json:"-"`
	ExpiresAt         time.Time `json:"expires_at"`
	PreferredLanguage string    `json:"preferred_language"`
}

// UserActivationChangedPayload records an admin toggling an account.
type UserActivationChangedPayload struct {
	Active  bool  `json:"active"`
	AdminID int64 `json:"admin_id"`
}
