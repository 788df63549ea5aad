package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository. UpdateStatus is the only
// write path for a status change: it enforces optimistic concurrency via
// the version column per §5, so two concurrent confirm/cancel attempts on
// the same payment never both succeed.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, payment_id, order_id, team_id, team_slug, amount, currency, status,
	description, urls, expires_at, created_at, updated_at,
	authorized_at, confirmed_at, cancelled_at, refunded_at,
	card_mask, receipt, metadata, email, language, version`

func encodePayment(p *domain.Payment) (urls, receipt, metadata []byte, err error) {
	if urls, err = json.Marshal(p.URLs); err != nil {
		return
	}
	if receipt, err = json.Marshal(p.Receipt); err != nil {
		return
	}
	if metadata, err = json.Marshal(p.Metadata); err != nil {
		return
	}
	return
}

func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var urls, receipt, metadata []byte
	err := row.Scan(
		&p.ID, &p.PaymentID, &p.OrderID, &p.TeamID, &p.TeamSlug, &p.Amount, &p.Currency, &p.Status,
		&p.Description, &urls, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorizedAt, &p.ConfirmedAt, &p.CancelledAt, &p.RefundedAt,
		&p.CardMask, &receipt, &metadata, &p.Email, &p.Language, &p.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	if err := json.Unmarshal(urls, &p.URLs); err != nil {
		return nil, fmt.Errorf("decode urls: %w", err)
	}
	if len(receipt) > 0 {
		if err := json.Unmarshal(receipt, &p.Receipt); err != nil {
			return nil, fmt.Errorf("decode receipt: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return p, nil
}

// Create inserts a new payment row at version 0.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	urls, receipt, metadata, err := encodePayment(p)
	if err != nil {
		return fmt.Errorf("encode payment: %w", err)
	}
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
	_, err = r.pool.Exec(ctx, query,
		p.ID, p.PaymentID, p.OrderID, p.TeamID, p.TeamSlug, p.Amount, p.Currency, p.Status,
		p.Description, urls, p.ExpiresAt, p.CreatedAt, p.UpdatedAt,
		p.AuthorizedAt, p.ConfirmedAt, p.CancelledAt, p.RefundedAt,
		p.CardMask, receipt, metadata, p.Email, p.Language, p.Version,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by its internal UUID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetByPaymentID fetches a payment by its public "pay_" token, scoped to a
// team so one team can never probe another's payment IDs.
func (r *PaymentRepo) GetByPaymentID(ctx context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE team_id = $1 AND payment_id = $2`
	return r.scanPayment(r.pool.QueryRow(ctx, query, teamID, paymentID))
}

// GetByPublicID fetches a payment by its public "pay_" token with no team
// scoping, for the anonymous hosted-form surface.
func (r *PaymentRepo) GetByPublicID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, paymentID))
}

// GetByOrderID fetches every payment a team has created for a given
// merchant-supplied order ID (order IDs may repeat across retries).
func (r *PaymentRepo) GetByOrderID(ctx context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE team_id = $1 AND order_id = $2 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, teamID, orderID)
	if err != nil {
		return nil, fmt.Errorf("query payments by order_id: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateStatus loads the row under expectedVersion, applies mutate to an
// in-memory copy, and writes it back with `WHERE id = $1 AND version =
// $2`. rowsAffected == 0 means a concurrent writer already moved the row
// past expectedVersion; the caller must treat that as a conflict rather
// than silently retrying.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*domain.Payment)) (int64, *domain.Payment, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	if current == nil {
		return 0, nil, fmt.Errorf("payment not found: %s", id)
	}
	if current.Version != expectedVersion {
		return 0, current, nil
	}

	updated := *current
	mutate(&updated)
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = time.Now().UTC()

	urls, receipt, metadata, err := encodePayment(&updated)
	if err != nil {
		return 0, nil, fmt.Errorf("encode payment: %w", err)
	}

	query := `UPDATE payments SET status=$1, urls=$2, expires_at=$3, updated_at=$4,
		authorized_at=$5, confirmed_at=$6, cancelled_at=$7, refunded_at=$8,
		card_mask=$9, receipt=$10, metadata=$11, version=$12
		WHERE id=$13 AND version=$14`
	tag, err := r.pool.Exec(ctx, query,
		updated.Status, urls, updated.ExpiresAt, updated.UpdatedAt,
		updated.AuthorizedAt, updated.ConfirmedAt, updated.CancelledAt, updated.RefundedAt,
		updated.CardMask, receipt, metadata, updated.Version,
		id, expectedVersion,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("update payment status: %w", err)
	}
	rows := tag.RowsAffected()
	if rows == 0 {
		latest, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return 0, nil, getErr
		}
		return 0, latest, nil
	}
	return rows, &updated, nil
}

// ListNonTerminalExpiring returns non-terminal payments whose ExpiresAt has
// passed cutoff, bounded by limit, for the expiry sweep.
func (r *PaymentRepo) ListNonTerminalExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE expires_at <= $1
		AND status NOT IN ('CONFIRMED','CAPTURED','COMPLETED','CANCELLED','REFUNDED','REJECTED','AUTH_FAIL','FAILED','EXPIRED','DEADLINE_EXPIRED')
		ORDER BY expires_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query expiring payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SumAmountSince aggregates total amount and count of payments a team has
// created at or after since, used to enforce daily/monthly caps.
func (r *PaymentRepo) SumAmountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, int, error) {
	query := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM payments WHERE team_id = $1 AND created_at >= $2`
	var total int64
	var count int
	if err := r.pool.QueryRow(ctx, query, teamID, since).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("sum amount since: %w", err)
	}
	return total, count, nil
}

var _ ports.PaymentRepository = (*PaymentRepo)(nil)
