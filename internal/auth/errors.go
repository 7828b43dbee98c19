package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Token verification failures. The authenticator collapses all of them into
// an anonymous request; they are only distinguished in logs and tests.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Authorization failures returned by the role gate.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient role")
)

// ErrPasswordTooLong is returned by HashPassword for passwords bcrypt cannot
// hash in full.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
