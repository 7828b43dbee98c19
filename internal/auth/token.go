package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

// DefaultTokenTTL is used when no positive TTL is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// tokenHeader field order is part of the wire format.
type tokenHeader struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

var defaultHeader = tokenHeader{Typ: "JWT", Alg: "HS256"}

var errMissingField = errors.New("missing")

// Claims describes the token payload.
type Claims struct {
	UserID    int64       `json:"user_id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"user_type"`
	ExpiresAt int64       `json:"exp"`
}

// Expiry returns exp as a time.
func (c *Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// rawClaims keeps missing fields distinguishable from zero values.
type rawClaims struct {
	UserID    json.RawMessage `json:"user_id"`
	Email     *string         `json:"email"`
	Role      *string         `json:"user_type"`
	ExpiresAt json.RawMessage `json:"exp"`
}

// TokenManager issues and verifies signed bearer tokens.
type TokenManager struct {
	signer *Signer
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a TokenManager.
type Option func(*TokenManager)

// WithClock replaces the wall clock used for exp computation and checks.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration, opts ...Option) (*TokenManager, error) {
	signer, err := NewSigner(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	tm := &TokenManager{signer: signer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	return tm, nil
}

// TTL returns the lifetime applied by GenerateToken.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// GenerateToken issues a token with the configured TTL.
func (tm *TokenManager) GenerateToken(subjectID int64, email string, role domain.Role) (string, time.Time, error) {
	return tm.Issue(subjectID, email, role, tm.ttl)
}

// Issue builds and signs a token that expires ttl (whole seconds) from now.
func (tm *TokenManager) Issue(subjectID int64, email string, role domain.Role, ttl time.Duration) (string, time.Time, error) {
	if subjectID <= 0 || email == "" || !role.Valid() || ttl < time.Second {
		return "", time.Time{}, ErrInvalidClaims
	}

	claims := Claims{
		UserID:    subjectID,
		Email:     email,
		Role:      role,
		ExpiresAt: tm.now().Unix() + int64(ttl/time.Second),
	}

	headerJSON, err := json.Marshal(defaultHeader)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	headerSeg := EncodeSegment(headerJSON)
	payloadSeg := EncodeSegment(payloadJSON)
	sig, err := tm.signer.Sign(headerSeg, payloadSeg)
	if err != nil {
		return "", time.Time{}, err
	}

	return headerSeg + "." + payloadSeg + "." + EncodeSegment(sig), claims.Expiry(), nil
}

// ParseToken validates the token and returns its claims. The signature is
// checked before any decoded content is looked at.
func (tm *TokenManager) ParseToken(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	headerJSON, err := DecodeSegment(parts[0])
	if err != nil {
		return nil, err
	}
	payloadJSON, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, err
	}

	if err := tm.signer.Verify(parts[0], parts[1], parts[2]); err != nil {
		return nil, err
	}

	var header tokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	if header.Alg != defaultHeader.Alg {
		return nil, fmt.Errorf("%w: unexpected alg %q", ErrMalformedToken, header.Alg)
	}

	claims, err := decodeClaims(payloadJSON)
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt <= tm.now().Unix() {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func decodeClaims(payload []byte) (*Claims, error) {
	var raw rawClaims
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	if raw.Email == nil || raw.Role == nil {
		return nil, fmt.Errorf("%w: missing email or user_type", ErrMalformedToken)
	}

	userID, err := decodeInt(raw.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", ErrMalformedToken, err)
	}
	exp, err := decodeInt(raw.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %v", ErrMalformedToken, err)
	}

	role := domain.Role(*raw.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown user_type %q", ErrMalformedToken, *raw.Role)
	}

	return &Claims{UserID: userID, Email: *raw.Email, Role: role, ExpiresAt: exp}, nil
}

// decodeInt accepts a JSON integer or a numeric string; the PHP backend
// emitted database ids as strings.
func decodeInt(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, errMissingField
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		s = str
	}
	return strconv.ParseInt(s, 10, 64)
}
