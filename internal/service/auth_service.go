package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mahara-dz/mahara-api/internal/auth"
	"github.com/mahara-dz/mahara-api/internal/config"
	"github.com/mahara-dz/mahara-api/internal/domain"
	"github.com/mahara-dz/mahara-api/internal/events"
	"github.com/mahara-dz/mahara-api/internal/repository"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrRoleNotRegistrable       = errors.New("invalid user type")
	ErrSelfDeactivation         = errors.New("admins cannot deactivate their own account")
)

// RegisterInput carries validated registration fields.
type RegisterInput struct {
	Email             string
	Password          string
	FirstName         string
	LastName          string
	Role              domain.Role
	Phone             string
	Wilaya            string
	City              string
	PreferredLanguage string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration, login and account recovery.
type AuthService struct {
	users           repository.UserRepository
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	tokenMgr        *auth.TokenManager
	bcryptCost      int
	resetTTL        time.Duration
	defaultLanguage string
	now             func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}

	tokenMgr, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL(), auth.WithClock(now))
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	lang := cfg.App.DefaultLanguage
	if lang == "" {
		lang = domain.LanguageArabic
	}

	return &AuthService{
		users:           deps.UserRepo,
		dispatcher:      dispatcher,
		logger:          logger,
		tokenMgr:        tokenMgr,
		bcryptCost:      cfg.Auth.BcryptCost,
		resetTTL:        cfg.Auth.PasswordResetTTL(),
		defaultLanguage: lang,
		now:             now,
	}, nil
}

// RegisterUser creates an unverified account and triggers the verification email.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.SelfRegistrable() {
		return nil, ErrRoleNotRegistrable
	}

	email := strings.TrimSpace(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	verification, err := auth.RandomToken()
	if err != nil {
		return nil, err
	}

	lang := in.PreferredLanguage
	if lang == "" {
		lang = s.defaultLanguage
	}

	user := &domain.User{
		Email:             email,
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Role:              role,
		Phone:             optional(in.Phone),
		Wilaya:            optional(in.Wilaya),
		City:              optional(in.City),
		PreferredLanguage: lang,
		VerificationToken: &verification,
		IsVerified:        false,
		IsActive:          true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user, events.UserRegisteredPayload{
		Role:              user.Role,
		FirstName:         user.FirstName,
		PreferredLanguage: user.PreferredLanguage,
		VerificationToken: verification,
	})
	return user, nil
}

// LoginUser authenticates an active account and issues a bearer token.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindActiveByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventUserLoggedIn, user, nil)

	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// Logout records the event. Tokens stay valid until they expire: there is
// no server-side revocation list.
func (s *AuthService) Logout(ctx context.Context, principal *domain.AuthenticatedUser) {
	if principal == nil {
		return
	}
	s.publish(ctx, events.EventUserLoggedOut, &domain.User{ID: principal.ID, Email: principal.Email}, nil)
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidVerificationToken
	}
	if err := s.users.MarkVerified(ctx, token); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return ErrInvalidVerificationToken
		}
		return err
	}
	return nil
}

// RequestPasswordReset stores a reset token for an active account. Unknown
// emails succeed silently so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindActiveByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := auth.RandomToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordResetRequested, user, events.PasswordResetRequestedPayload{
		ResetToken:        token,
		ExpiresAt:         expiresAt,
		PreferredLanguage: user.PreferredLanguage,
	})
	return nil
}

// ResetPassword replaces the password of the account holding an unexpired
// reset token and clears the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	user, err := s.users.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if user.ResetTokenExpires == nil || !s.now().Before(*user.ResetTokenExpires) {
		return ErrInvalidResetToken
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordReset, user, nil)
	return nil
}

// CurrentUser reloads the caller's record.
func (s *AuthService) CurrentUser(ctx context.Context, principal *domain.AuthenticatedUser) (*domain.User, error) {
	if principal == nil {
		return nil, auth.ErrUnauthenticated
	}
	return s.users.GetByID(ctx, principal.ID)
}

// SetUserActive activates or deactivates an account. A deactivated user's
// outstanding tokens stop authenticating on their next request.
func (s *AuthService) SetUserActive(ctx context.Context, admin *domain.AuthenticatedUser, userID int64, active bool) (*domain.User, error) {
	if _, err := auth.Require(admin, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if admin.ID == userID && !active {
		return nil, ErrSelfDeactivation
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserActivationChanged, user, events.UserActivationChangedPayload{
		Active:  active,
		AdminID: admin.ID,
	})
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload interface{}) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    user.ID,
		Email:     user.Email,
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
