package auth

import (
	"crypto/hmac"
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer computes HMAC-SHA256 signatures over "header.payload".
type Signer struct {
	secret []byte
}

// NewSigner returns a signer keyed with secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the raw HMAC digest of headerSeg + "." + payloadSeg.
func (s *Signer) Sign(headerSeg, payloadSeg string) ([]byte, error) {
	return jwt.SigningMethodHS256.Sign(signingInput(headerSeg, payloadSeg), s.secret)
}

// Verify recomputes the signature for the two encoded segments and compares
// its encoded form with sigSeg in constant time. sigSeg is never decoded, so
// a signature with characters outside the base64url alphabet is reported as
// ErrInvalidSignature rather than ErrMalformedToken.
func (s *Signer) Verify(headerSeg, payloadSeg, sigSeg string) error {
	expected, err := s.Sign(headerSeg, payloadSeg)
	if err != nil {
		return err
	}
	if !SignaturesEqual([]byte(sigSeg), []byte(EncodeSegment(expected))) {
		return ErrInvalidSignature
	}
	return nil
}

// SignaturesEqual compares two signatures without leaking the position of
// the first differing byte.
func SignaturesEqual(candidate, expected []byte) bool {
	return hmac.Equal(candidate, expected)
}

func signingInput(headerSeg, payloadSeg string) string {
	return headerSeg + "." + payloadSeg
}
