package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"

	"secure-payment-gateway/internal/core/ports"
)

// HMACAuthenticator implements ports.Authenticator per §4.1: the token is
// the lowercase hex SHA-256 of the team's root scalar request fields plus
// Password, concatenated in ASCII key-sorted order with no separators.
// Hex encoding and constant-time comparison follow the same shape as a
// conventional HMAC signature service, but the sorted-concatenation
// construction replaces a method|path|timestamp|nonce|body canonical string.
type HMACAuthenticator struct{}

// NewHMACAuthenticator constructs the stateless authenticator.
func NewHMACAuthenticator() *HMACAuthenticator {
	return &HMACAuthenticator{}
}

// BuildToken computes the token over fields (the operation's agreed root
// scalar parameters) plus the team's password.
func (a *HMACAuthenticator) BuildToken(op ports.Operation, fields map[string]string, password string) string {
	all := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		all[k] = v
	}
	all["Password"] = password

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(all[k])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the token and compares it to the caller-supplied token
// in constant time.
func (a *HMACAuthenticator) Verify(op ports.Operation, fields map[string]string, password string, token string) bool {
	if token == "" {
		return false
	}
	expected := a.BuildToken(op, fields, password)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

// FieldsForOperation returns the fixed root-scalar field names §4.1 binds
// per operation; Amount is included for confirm/cancel/check only when the
// caller supplied it (handled by the caller, not this table).
func FieldsForOperation(op ports.Operation) []string {
	switch op {
	case ports.OpInit:
		return []string{"Amount", "Currency", "OrderId", "TeamSlug"}
	case ports.OpConfirm, ports.OpCancel, ports.OpCheck:
		return []string{"TeamSlug", "PaymentId"}
	default:
		return nil
	}
}
