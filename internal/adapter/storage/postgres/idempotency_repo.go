package postgres

import (
	"context"
	"errors"
	"fmt"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository, the durable
// backstop consulted when the fast Redis cache misses or was evicted.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts an idempotency record within a database transaction, so
// it commits atomically with the mutation it is guarding.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_records (scope, team_id, key, response_json, transaction_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		string(rec.Scope), rec.TeamID, rec.Key, rec.ResponseJSON,
		rec.TransactionID, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// Get fetches a record by (scope, teamID, key).
func (r *IdempotencyRepo) Get(ctx context.Context, scope domain.IdempotencyScope, teamID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT scope, team_id, key, response_json, transaction_id, created_at, expires_at
		FROM idempotency_records WHERE scope = $1 AND team_id = $2 AND key = $3`

	rec := &domain.IdempotencyRecord{}
	var scopeStr string
	err := r.pool.QueryRow(ctx, query, string(scope), teamID, key).Scan(
		&scopeStr, &rec.TeamID, &rec.Key, &rec.ResponseJSON, &rec.TransactionID, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.Scope = domain.IdempotencyScope(scopeStr)
	return rec, nil
}

var _ ports.IdempotencyRepository = (*IdempotencyRepo)(nil)
