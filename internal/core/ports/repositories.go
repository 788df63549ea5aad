package ports

import (
	"context"
	"time"

	"secure-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TeamRepository defines persistence operations for teams (C3/C4).
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Team, error)
	Update(ctx context.Context, team *domain.Team) error
	// IncrementFailedAttempts bumps the lockout counter and, when lockUntil
	// is non-nil, sets LockedUntil to it; the caller decides when the
	// threshold is reached. Returns the resulting attempt count.
	IncrementFailedAttempts(ctx context.Context, teamID uuid.UUID, lockUntil *time.Time) (int, error)
	ResetFailedAttempts(ctx context.Context, teamID uuid.UUID) error
}

// PaymentRepository defines persistence operations for the Payment
// aggregate. All status-mutating writes go through UpdateStatus, which
// enforces optimistic concurrency via the version column per §5: a
// mismatched expectedVersion updates zero rows and the caller must treat
// that as apperror.KindConflict.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByPaymentID(ctx context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error)

	// GetByPublicID fetches a payment by its public "pay_" token without
	// team scoping, for the anonymous hosted-form surface (§4.4.2) where
	// the token itself is the capability, not a team-authenticated lookup.
	GetByPublicID(ctx context.Context, paymentID string) (*domain.Payment, error)

	// UpdateStatus applies mutate to an in-memory copy of the row loaded
	// under expectedVersion and persists it with
	// `WHERE id = $1 AND version = $2`, bumping version by one.
	// rowsAffected == 0 means a concurrent writer already moved the row;
	// the caller must surface apperror.KindConflict without retrying
	// automatically.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*domain.Payment)) (rowsAffected int64, updated *domain.Payment, err error)

	// ListNonTerminalExpiring returns non-terminal payments whose
	// ExpiresAt <= cutoff, for the expiry sweep (§4.4.6).
	ListNonTerminalExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)

	// SumAmountSince aggregates a team's payment volume and count created
	// at or after since, for the daily/monthly cap checks in Init (§4.4.1).
	SumAmountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (total int64, count int, err error)
}

// TransactionRepository defines persistence operations for the append-only
// Transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error)

	// ListByTeam fetches every transaction recorded against any payment
	// owned by teamID, most recent first, bounded by limit, for the
	// dashboard/reporting surface (§15).
	ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// AuditRepository persists AuditLogEntry rows.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
}

// IdempotencyRepository is the durable backstop for idempotency records,
// consulted when the fast Redis cache (ports.IdempotencyCache) misses.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, scope domain.IdempotencyScope, teamID uuid.UUID, key string) (*domain.IdempotencyRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WebhookRepository persists webhook delivery attempts for a payment's
// notification lifecycle (§15 supplemented feature). Passing no repository
// to NewWebhookService disables persistence without disabling delivery.
type WebhookRepository interface {
	Create(ctx context.Context, log *domain.WebhookDeliveryLog) error
	Update(ctx context.Context, log *domain.WebhookDeliveryLog) error
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.WebhookDeliveryLog, error)
}
