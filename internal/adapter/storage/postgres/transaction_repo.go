package postgres

import (
	"context"
	"fmt"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository, the append-only
// log of bank-adapter attempts (authorize/capture/reverse/refund) backing
// a payment's withTransactions check response.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction row within a database transaction, so
// it commits atomically with the payment status mutation that caused it.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions
		(id, payment_id, type, status, bank_ref, auth_code, rrn, response_code, response_message, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.PaymentID, t.Type, t.Status, t.BankRef, t.AuthCode, t.RRN,
		t.ResponseCode, t.ResponseMessage, t.Amount, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByPayment fetches every transaction recorded against a payment, most
// recent first.
func (r *TransactionRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT id, payment_id, type, status, bank_ref, auth_code, rrn, response_code, response_message, amount, created_at
		FROM transactions WHERE payment_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.PaymentID, &t.Type, &t.Status, &t.BankRef, &t.AuthCode, &t.RRN,
			&t.ResponseCode, &t.ResponseMessage, &t.Amount, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByTeam fetches every transaction recorded against any payment
// belonging to teamID, most recent first, bounded by limit, for the
// dashboard/reporting surface.
func (r *TransactionRepo) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `SELECT t.id, t.payment_id, t.type, t.status, t.bank_ref, t.auth_code, t.rrn,
		t.response_code, t.response_message, t.amount, t.created_at
		FROM transactions t
		JOIN payments p ON p.id = t.payment_id
		WHERE p.team_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions by team: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.PaymentID, &t.Type, &t.Status, &t.BankRef, &t.AuthCode, &t.RRN,
			&t.ResponseCode, &t.ResponseMessage, &t.Amount, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ ports.TransactionRepository = (*TransactionRepo)(nil)
