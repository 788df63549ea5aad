package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType is the kind of bank-adapter call a Transaction records.
type TransactionType string

const (
	TransactionTypeAuthorize TransactionType = "AUTHORIZE"
	TransactionTypeCapture   TransactionType = "CAPTURE"
	TransactionTypeReverse   TransactionType = "REVERSE"
	TransactionTypeRefund    TransactionType = "REFUND"
)

// TransactionStatus is the outcome of a single bank-adapter call.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusDeclined TransactionStatus = "DECLINED"
	TransactionStatusError    TransactionStatus = "ERROR"
)

// Transaction is an append-only record of one bank-adapter call against a
// Payment; never updated once it reaches a terminal status.
type Transaction struct {
	ID              uuid.UUID
	PaymentID       uuid.UUID
	Type            TransactionType
	Status          TransactionStatus
	BankRef         string
	AuthCode        string
	RRN             string
	ResponseCode    string
	ResponseMessage string
	Amount          int64
	CreatedAt       time.Time
}

// IsTerminal reports whether the transaction reached a final outcome.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusApproved ||
		t.Status == TransactionStatusDeclined ||
		t.Status == TransactionStatusError
}
