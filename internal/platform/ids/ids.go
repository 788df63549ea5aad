// Package ids generates internal UUIDs and public opaque payment tokens
// (C1) using the same crypto/rand hex-key idiom used elsewhere in the
// service layer for generating secrets.
package ids

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

const crockfordAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// NewInternalID returns a fresh random internal identifier.
func NewInternalID() uuid.UUID {
	return uuid.New()
}

// NewPublicPaymentID returns a "pay_" + 26-char crockford-base32 token,
// suitable for exposure in URLs and API responses.
func NewPublicPaymentID() (string, error) {
	token, err := randomToken(26)
	if err != nil {
		return "", err
	}
	return "pay_" + token, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(n)
	for _, b := range buf {
		sb.WriteByte(crockfordAlphabet[int(b)%len(crockfordAlphabet)])
	}
	return sb.String(), nil
}
