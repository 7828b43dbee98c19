package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

const bearerPrefix = "Bearer "

// Request is the only view of an inbound request the authenticator needs.
type Request interface {
	Header(name string) string
}

// HeaderMap is a Request backed by a plain map, keyed by canonical name.
type HeaderMap map[string]string

// Header implements Request.
func (h HeaderMap) Header(name string) string {
	return h[name]
}

// UserLookup resolves a subject id to an active stored user. Implementations
// return domain.ErrUserNotFound when the user is missing or inactive.
type UserLookup interface {
	FindActiveByID(ctx context.Context, id int64) (*domain.User, error)
}

// Authenticator turns a bearer token into an authenticated user.
type Authenticator struct {
	tokens *TokenManager
	users  UserLookup
	logger *zap.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *TokenManager, users UserLookup, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, users: users, logger: logger}
}

// Authenticate returns the caller, or nil for an anonymous request. Missing,
// malformed, tampered or expired tokens and unknown or deactivated users all
// produce nil without an error; only a storage failure is returned.
func (a *Authenticator) Authenticate(ctx context.Context, req Request) (*domain.AuthenticatedUser, error) {
	header := req.Header("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, nil
	}

	claims, err := a.tokens.ParseToken(header[len(bearerPrefix):])
	if err != nil {
		a.logger.Debug("bearer token rejected", zap.Error(err))
		return nil, nil
	}

	user, err := a.users.FindActiveByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			a.logger.Debug("token subject not active", zap.Int64("user_id", claims.UserID))
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}

	return domain.NewAuthenticatedUser(user), nil
}
