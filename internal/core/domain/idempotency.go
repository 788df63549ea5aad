package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyScope names the operation an IdempotencyRecord is keyed under,
// per §4.2. Scopes never share keys with each other.
type IdempotencyScope string

const (
	ScopeCheck   IdempotencyScope = "payment_check"
	ScopeConfirm IdempotencyScope = "payment_confirm"
	ScopeCancel  IdempotencyScope = "payment_cancel"
)

// IdempotencyRecord is a cache entry: (scope, teamId, key) -> (payload, ttl).
// The durable copy (postgres) additionally carries TransactionID for the
// confirm/cancel scopes, where a record also proves "exactly one adapter
// call happened" independent of the fast cache's TTL eviction.
type IdempotencyRecord struct {
	Scope         IdempotencyScope
	TeamID        uuid.UUID
	Key           string
	ResponseJSON  []byte
	TransactionID *uuid.UUID
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// BuildCheckKey constructs the §4.2 check-scope cache key.
func BuildCheckKey(teamID uuid.UUID, paymentOrOrderID, flags, lang string) string {
	return "chk:" + teamID.String() + ":" + paymentOrOrderID + ":" + flags + ":" + lang
}

// BuildConfirmKey constructs the §4.2 confirm-scope cache key.
func BuildConfirmKey(teamID uuid.UUID, clientIdempotencyKey string) string {
	return "cfm:" + teamID.String() + ":" + clientIdempotencyKey
}

// BuildCancelKey constructs the §4.2 cancel-scope cache key.
func BuildCancelKey(teamID uuid.UUID, externalRequestID string) string {
	return "cxl:" + teamID.String() + ":" + externalRequestID
}
