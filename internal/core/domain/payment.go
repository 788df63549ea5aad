package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is a payment's FSM state. Capitalised per spec §4.3.
type Status string

const (
	StatusInit               Status = "INIT"
	StatusNew                Status = "NEW"
	StatusFormShowed         Status = "FORM_SHOWED"
	StatusAuthorizing        Status = "AUTHORIZING"
	StatusAuthorized         Status = "AUTHORIZED"
	StatusAuthFail           Status = "AUTH_FAIL"
	StatusConfirming         Status = "CONFIRMING"
	StatusConfirmed          Status = "CONFIRMED"
	StatusCompleted          Status = "COMPLETED"
	StatusCaptured           Status = "CAPTURED"
	StatusRejected           Status = "REJECTED"
	StatusCancelled          Status = "CANCELLED"
	StatusRefunded           Status = "REFUNDED"
	StatusPartiallyRefunded  Status = "PARTIALLY_REFUNDED"
	StatusFailed             Status = "FAILED"
	StatusExpired            Status = "EXPIRED"
	StatusDeadlineExpired    Status = "DEADLINE_EXPIRED"
	StatusProcessing         Status = "PROCESSING"
)

// terminalStatuses are the statuses Payment.IsTerminal reports as terminal.
// CONFIRMED/CAPTURED/COMPLETED are included even though the FSM still has
// refund edges out of them; IsTerminal does not distinguish that case.
var terminalStatuses = map[Status]bool{
	StatusConfirmed:       true,
	StatusCaptured:        true,
	StatusCompleted:       true,
	StatusCancelled:       true,
	StatusRefunded:        true,
	StatusRejected:        true,
	StatusAuthFail:        true,
	StatusFailed:          true,
	StatusExpired:         true,
	StatusDeadlineExpired: true,
}

// Payment is the FSM's subject and the gateway's central aggregate.
type Payment struct {
	ID              uuid.UUID
	PaymentID       string // public "pay_" token
	OrderID         string // merchant-supplied, <= 36 chars, may repeat
	TeamID          uuid.UUID
	TeamSlug        string // denormalized for fast auth lookups
	Amount          int64  // minor units
	Currency        Currency
	Status          Status
	Description     string
	URLs            TeamURLs
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AuthorizedAt    *time.Time
	ConfirmedAt     *time.Time
	CancelledAt     *time.Time
	RefundedAt      *time.Time
	CardMask        string // masked PAN, set only after authorization
	Receipt         map[string]string
	Metadata        map[string]string
	Email           string
	Language        string
	Version         int64 // optimistic concurrency token
}

// IsTerminal reports whether the current status is in terminalStatuses.
func (p *Payment) IsTerminal() bool {
	return terminalStatuses[p.Status]
}

// IsExpired reports whether the payment's deadline has already passed.
func (p *Payment) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// MetadataValue reads one of the two documented Metadata/Data keys the
// engine is permitted to branch on (§9): idempotencyKey, externalRequestId.
func (p *Payment) MetadataValue(key string) (string, bool) {
	if p.Metadata == nil {
		return "", false
	}
	v, ok := p.Metadata[key]
	return v, ok
}

const (
	MetaIdempotencyKey    = "idempotencyKey"
	MetaExternalRequestID = "externalRequestId"
)
