package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the operation an AuditLogEntry records.
type AuditAction string

const (
	AuditActionInit         AuditAction = "PAYMENT_INIT"
	AuditActionFormShow     AuditAction = "PAYMENT_FORM_SHOW"
	AuditActionAuthorize    AuditAction = "PAYMENT_AUTHORIZE"
	AuditActionConfirm      AuditAction = "PAYMENT_CONFIRM"
	AuditActionCancel       AuditAction = "PAYMENT_CANCEL"
	AuditActionExpire       AuditAction = "PAYMENT_EXPIRE"
	AuditActionTeamRegister AuditAction = "TEAM_REGISTER"
	AuditActionTeamLogin    AuditAction = "TEAM_LOGIN"
)

// AuditOutcome is the result of the audited action.
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "SUCCESS"
	AuditOutcomeFailure AuditOutcome = "FAILURE"
)

// AuditLogEntry is an append-only operational record, retained independent
// of any payment's lifecycle.
type AuditLogEntry struct {
	ID        uuid.UUID
	Timestamp time.Time
	Actor     string // team slug, "admin", or "system"
	Action    AuditAction
	PaymentID *string // public pay_ token, when applicable
	TeamSlug  *string
	Outcome   AuditOutcome
	Detail    map[string]string
}
