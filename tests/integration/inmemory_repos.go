package integration

import (
	"context"
	"sync"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Team Repo ---

type inMemoryTeamRepo struct {
	mu    sync.RWMutex
	teams map[uuid.UUID]*domain.Team
}

func newInMemoryTeamRepo() *inMemoryTeamRepo {
	return &inMemoryTeamRepo{teams: make(map[uuid.UUID]*domain.Team)}
}

func (r *inMemoryTeamRepo) Create(ctx context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *team
	r.teams[team.ID] = &cp
	return nil
}

func (r *inMemoryTeamRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTeamRepo) GetBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.teams {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTeamRepo) Update(ctx context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; !ok {
		return nil
	}
	cp := *team
	r.teams[team.ID] = &cp
	return nil
}

func (r *inMemoryTeamRepo) IncrementFailedAttempts(ctx context.Context, teamID uuid.UUID, lockUntil *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return 0, nil
	}
	t.FailedAuthAttempts++
	if lockUntil != nil {
		t.LockedUntil = lockUntil
	}
	return t.FailedAuthAttempts, nil
}

func (r *inMemoryTeamRepo) ResetFailedAttempts(ctx context.Context, teamID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return nil
	}
	t.FailedAuthAttempts = 0
	t.LockedUntil = nil
	return nil
}

var _ ports.TeamRepository = (*inMemoryTeamRepo)(nil)

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*domain.Payment
	byPublic map[string]uuid.UUID
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{byID: make(map[uuid.UUID]*domain.Payment), byPublic: make(map[string]uuid.UUID)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[p.ID] = &cp
	r.byPublic[p.PaymentID] = p.ID
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByPaymentID(ctx context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	id, ok := r.byPublic[paymentID]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	p, err := r.GetByID(ctx, id)
	if err != nil || p == nil || p.TeamID != teamID {
		return nil, err
	}
	return p, nil
}

func (r *inMemoryPaymentRepo) GetByOrderID(ctx context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.byID {
		if p.TeamID == teamID && p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *inMemoryPaymentRepo) GetByPublicID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	id, ok := r.byPublic[paymentID]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*domain.Payment)) (int64, *domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return 0, nil, nil
	}
	if current.Version != expectedVersion {
		cp := *current
		return 0, &cp, nil
	}
	updated := *current
	mutate(&updated)
	updated.Version = expectedVersion + 1
	r.byID[id] = &updated
	cp := updated
	return 1, &cp, nil
}

func (r *inMemoryPaymentRepo) ListNonTerminalExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.byID {
		if p.IsTerminal() {
			continue
		}
		if p.ExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, *p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *inMemoryPaymentRepo) SumAmountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	var count int
	for _, p := range r.byID {
		if p.TeamID == teamID && !p.CreatedAt.Before(since) {
			total += p.Amount
			count++
		}
	}
	return total, count, nil
}

var _ ports.PaymentRepository = (*inMemoryPaymentRepo)(nil)

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu  sync.Mutex
	txs []domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, *t)
	return nil
}

func (r *inMemoryTransactionRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.txs {
		if t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *inMemoryTransactionRepo) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transaction, len(r.txs))
	copy(out, r.txs)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ ports.TransactionRepository = (*inMemoryTransactionRepo)(nil)

// --- In-Memory Idempotency Repo (durable backstop) ---

type inMemoryIdempotencyRepo struct {
	mu      sync.Mutex
	records []domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, scope domain.IdempotencyScope, teamID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Scope == scope && rec.TeamID == teamID && rec.Key == key {
			cp := rec
			return &cp, nil
		}
	}
	return nil, nil
}

var _ ports.IdempotencyRepository = (*inMemoryIdempotencyRepo)(nil)

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

var _ ports.DBTransactor = (*inMemoryTransactor)(nil)

// noopTx is a no-op pgx.Tx implementation: only the methods the lifecycle
// engine actually calls (Begin/Commit/Rollback) do anything.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                              { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
