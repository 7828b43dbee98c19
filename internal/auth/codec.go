package auth

import (
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// segmentParser restores stripped padding before decoding so that tokens
// minted by other implementations of the same format decode identically.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

var segmentEncoder = new(jwt.Token)

// EncodeSegment encodes b as base64url without padding.
func EncodeSegment(b []byte) string {
	return segmentEncoder.EncodeSegment(b)
}

// DecodeSegment decodes a base64url segment. Any character outside the
// base64url alphabet yields ErrMalformedToken.
func DecodeSegment(seg string) ([]byte, error) {
	if i := strings.IndexFunc(strings.TrimRight(seg, "="), notURLAlphabet); i >= 0 {
		return nil, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformedToken, seg[i], i)
	}
	b, err := segmentParser.DecodeSegment(seg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return b, nil
}

// notURLAlphabet reports runes outside [A-Za-z0-9_-]. The base64 decoder
// skips CR and LF on its own, so they are rejected here.
func notURLAlphabet(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		return false
	}
	return true
}
