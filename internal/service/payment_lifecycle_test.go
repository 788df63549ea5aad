package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"secure-payment-gateway/config"
	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/internal/platform/clock"
	"secure-payment-gateway/internal/platform/metrics"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePaymentRepo is an in-memory ports.PaymentRepository stub, enough to
// exercise the lifecycle engine's optimistic-concurrency claim/rollback
// pattern without a real database.
type fakePaymentRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*domain.Payment
	byPublic map[string]uuid.UUID
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{byID: map[uuid.UUID]*domain.Payment{}, byPublic: map[string]uuid.UUID{}}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[p.ID] = &cp
	r.byPublic[p.PaymentID] = p.ID
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) GetByPaymentID(ctx context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error) {
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

func (r *fakePaymentRepo) GetByPublicID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	id, ok := r.byPublic[paymentID]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *fakePaymentRepo) GetByOrderID(ctx context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error) {
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

func (r *fakePaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate func(*domain.Payment)) (int64, *domain.Payment, error) {
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

func (r *fakePaymentRepo) ListNonTerminalExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
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

func (r *fakePaymentRepo) SumAmountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, int, error) {
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

var _ ports.PaymentRepository = (*fakePaymentRepo)(nil)

// fakeTxRepo records transactions appended by the engine.
type fakeTxRepo struct {
	mu   sync.Mutex
	txs  []domain.Transaction
}

func (r *fakeTxRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, *t)
	return nil
}

func (r *fakeTxRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transaction, error) {
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

func (r *fakeTxRepo) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transaction, len(r.txs))
	copy(out, r.txs)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ ports.TransactionRepository = (*fakeTxRepo)(nil)

// mockTx implements pgx.Tx for testing: embed the interface, override only
// the methods the engine actually calls.
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// fakeTransactor always hands out a no-op mockTx.
type fakeTransactor struct{}

func (fakeTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return &mockTx{}, nil }

var _ ports.DBTransactor = fakeTransactor{}

// fakeIdempotencyCache is an in-memory ports.IdempotencyCache.
type fakeIdempotencyCache struct {
	mu          sync.Mutex
	store       map[string][]byte
	ttls        map[string]time.Duration
	invalidated map[string]bool
}

func newFakeIdempotencyCache() *fakeIdempotencyCache {
	return &fakeIdempotencyCache{store: map[string][]byte{}, ttls: map[string]time.Duration{}, invalidated: map[string]bool{}}
}

func (c *fakeIdempotencyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, ok, nil
}

func (c *fakeIdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeIdempotencyCache) Invalidate(ctx context.Context, teamID uuid.UUID, paymentID, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated[teamID.String()+":"+paymentID] = true
	return nil
}

var _ ports.IdempotencyCache = (*fakeIdempotencyCache)(nil)

// fakeIdempotencyRepo is the durable idempotency backstop, always a miss
// unless explicitly seeded.
type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	records []domain.IdempotencyRecord
}

func (r *fakeIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeIdempotencyRepo) Get(ctx context.Context, scope domain.IdempotencyScope, teamID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
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

var _ ports.IdempotencyRepository = (*fakeIdempotencyRepo)(nil)

// fakeBankAdapter lets each test script its own authorize/capture/release/
// refund outcomes.
type fakeBankAdapter struct {
	authorizeFn func(ctx context.Context, card ports.CardInput, amount int64, currency domain.Currency) (*ports.AuthorizeResult, error)
	captureFn   func(ctx context.Context, authCode string, amount int64) (*ports.CaptureResult, error)
	releaseFn   func(ctx context.Context, authCode string) error
	refundFn    func(ctx context.Context, bankRef string, amount int64) (*ports.RefundResult, error)
}

func (b *fakeBankAdapter) Authorize(ctx context.Context, card ports.CardInput, amount int64, currency domain.Currency) (*ports.AuthorizeResult, error) {
	if b.authorizeFn != nil {
		return b.authorizeFn(ctx, card, amount, currency)
	}
	return &ports.AuthorizeResult{Approved: true, AuthCode: "AUTH1", RRN: "RRN1"}, nil
}

func (b *fakeBankAdapter) Capture(ctx context.Context, authCode string, amount int64) (*ports.CaptureResult, error) {
	if b.captureFn != nil {
		return b.captureFn(ctx, authCode, amount)
	}
	return &ports.CaptureResult{Approved: true, BankRef: "BANKREF1"}, nil
}

func (b *fakeBankAdapter) Release(ctx context.Context, authCode string) error {
	if b.releaseFn != nil {
		return b.releaseFn(ctx, authCode)
	}
	return nil
}

func (b *fakeBankAdapter) Refund(ctx context.Context, bankRef string, amount int64) (*ports.RefundResult, error) {
	if b.refundFn != nil {
		return b.refundFn(ctx, bankRef, amount)
	}
	return &ports.RefundResult{Approved: true, RefundRef: "REFUND1"}, nil
}

var _ ports.BankAdapter = (*fakeBankAdapter)(nil)

// fakeAuditService and fakeWebhookServiceNoop round out the lifecycle
// engine's dependency set with the same hand-rolled-fake pattern used
// throughout internal/service.
type fakeAuditService struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
}

func (a *fakeAuditService) Log(ctx context.Context, entry domain.AuditLogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

var _ ports.AuditService = (*fakeAuditService)(nil)

type fakeWebhookServiceNoop struct {
	mu       sync.Mutex
	enqueued []string
}

func (w *fakeWebhookServiceNoop) EnqueueWebhook(ctx context.Context, payment *domain.Payment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enqueued = append(w.enqueued, payment.PaymentID)
	return nil
}

var _ ports.WebhookService = (*fakeWebhookServiceNoop)(nil)

type lifecycleTestDeps struct {
	engine      *PaymentLifecycleEngine
	teamRepo    *fakeTeamRepo
	paymentRepo *fakePaymentRepo
	txRepo      *fakeTxRepo
	idempCache  *fakeIdempotencyCache
	idempRepo   *fakeIdempotencyRepo
	bank        *fakeBankAdapter
	audit       *fakeAuditService
	webhook     *fakeWebhookServiceNoop
	metrics     *metrics.InProcess
	clock       *clock.Fake
}

func newLifecycleTestDeps(team *domain.Team) *lifecycleTestDeps {
	d := &lifecycleTestDeps{
		teamRepo:    newFakeTeamRepo(team),
		paymentRepo: newFakePaymentRepo(),
		txRepo:      &fakeTxRepo{},
		idempCache:  newFakeIdempotencyCache(),
		idempRepo:   &fakeIdempotencyRepo{},
		bank:        &fakeBankAdapter{},
		audit:       &fakeAuditService{},
		webhook:     &fakeWebhookServiceNoop{},
		metrics:     metrics.New(),
		clock:       clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
	}
	limits := config.LimitsConfig{
		DefaultPaymentExpiry: 24 * time.Hour,
		MinPaymentExpiry:     5 * time.Minute,
		MaxPaymentExpiry:     72 * time.Hour,
	}
	cache := config.CacheConfig{MutationTTL: 24 * time.Hour}
	d.engine = NewPaymentLifecycleEngine(
		d.teamRepo, d.paymentRepo, d.txRepo, d.idempCache, d.idempRepo, fakeTransactor{},
		d.bank, d.audit, d.webhook, d.metrics, d.clock, limits, cache, newTestLogger(),
	)
	return d
}

func testTeam(slug string) *domain.Team {
	return &domain.Team{
		ID:                  uuid.New(),
		Slug:                slug,
		Name:                "Acme",
		SupportedCurrencies: []domain.Currency{domain.CurrencyRUB},
		Limits:              domain.TeamLimits{MaxAmount: 1000000},
		URLs:                domain.TeamURLs{SuccessURL: "https://acme.example/ok"},
		IsActive:            true,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
}

func TestPaymentLifecycleEngine_Init_Success(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)

	payment, err := d.engine.Init(context.Background(), ports.InitRequest{
		TeamSlug: "acme",
		Amount:   10000,
		Currency: domain.CurrencyRUB,
		OrderID:  "order-1",
	})
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, domain.StatusNew, payment.Status)
	assert.Equal(t, int64(0), payment.Version)
	assert.NotEmpty(t, payment.PaymentID)
	assert.Equal(t, float64(1), d.metrics.Counter("payment_init_requests_total", map[string]string{"result": "success"}))
}

func TestPaymentLifecycleEngine_Init_UnknownTeam(t *testing.T) {
	d := newLifecycleTestDeps(testTeam("acme"))

	_, err := d.engine.Init(context.Background(), ports.InitRequest{
		TeamSlug: "nope", Amount: 10000, Currency: domain.CurrencyRUB,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.HTTPStatus)
}

func TestPaymentLifecycleEngine_Init_LimitExceeded(t *testing.T) {
	d := newLifecycleTestDeps(testTeam("acme"))

	_, err := d.engine.Init(context.Background(), ports.InitRequest{
		TeamSlug: "acme", Amount: 5000000, Currency: domain.CurrencyRUB,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 422, appErr.HTTPStatus)
}

func seedAuthorizedPayment(t *testing.T, d *lifecycleTestDeps, team *domain.Team) *domain.Payment {
	t.Helper()
	payment, err := d.engine.Init(context.Background(), ports.InitRequest{
		TeamSlug: team.Slug, Amount: 10000, Currency: domain.CurrencyRUB, OrderID: "order-1",
	})
	require.NoError(t, err)

	_, rendered, err := d.paymentRepo.UpdateStatus(context.Background(), payment.ID, payment.Version, func(p *domain.Payment) {
		p.Status = domain.StatusFormShowed
	})
	require.NoError(t, err)

	submitted, err := d.engine.SubmitForm(context.Background(), ports.FormSubmitRequest{
		PaymentID: rendered.PaymentID,
		Card:      ports.CardInput{PAN: "4111111111111111", ExpiryMM: "12", ExpiryYY: "30", CVV: "123"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAuthorized, submitted.Status)
	return submitted
}

func TestPaymentLifecycleEngine_Confirm_Success(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)

	confirmed, warning, err := d.engine.Confirm(context.Background(), ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID,
	})
	require.NoError(t, err)
	assert.False(t, warning)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)
	assert.True(t, d.idempCache.invalidated[team.ID.String()+":"+confirmed.PaymentID], "confirm must invalidate the check cache for the mutated payment")
}

func TestPaymentLifecycleEngine_Confirm_AmountMismatch(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)

	badAmount := authorized.Amount + 1
	_, _, err := d.engine.Confirm(context.Background(), ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID, Amount: &badAmount,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPStatus)
}

func TestPaymentLifecycleEngine_Confirm_InvalidState(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	payment, err := d.engine.Init(context.Background(), ports.InitRequest{
		TeamSlug: team.Slug, Amount: 10000, Currency: domain.CurrencyRUB, OrderID: "order-1",
	})
	require.NoError(t, err)

	_, _, err = d.engine.Confirm(context.Background(), ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: payment.PaymentID,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
}

func TestPaymentLifecycleEngine_Confirm_AdapterDeclineRollsBack(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)

	d.bank.captureFn = func(ctx context.Context, authCode string, amount int64) (*ports.CaptureResult, error) {
		return &ports.CaptureResult{Approved: false}, nil
	}

	_, _, err := d.engine.Confirm(context.Background(), ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 502, appErr.HTTPStatus)

	reloaded, err := d.paymentRepo.GetByID(context.Background(), authorized.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthorized, reloaded.Status)
	assert.True(t, d.idempCache.invalidated[team.ID.String()+":"+authorized.PaymentID], "a declined capture must still invalidate the check cache")
}

func TestPaymentLifecycleEngine_Confirm_Idempotent(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)

	req := ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID,
		Data: map[string]string{domain.MetaIdempotencyKey: "idem-1"},
	}

	first, _, err := d.engine.Confirm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, first.Status)

	second, _, err := d.engine.Confirm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, domain.StatusConfirmed, second.Status)
}

func TestPaymentLifecycleEngine_Cancel_New_NoAdapterCall(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	payment, err := d.engine.Init(context.Background(), ports.InitRequest{
		TeamSlug: team.Slug, Amount: 10000, Currency: domain.CurrencyRUB, OrderID: "order-1",
	})
	require.NoError(t, err)

	cancelled, warning, err := d.engine.Cancel(context.Background(), ports.CancelRequest{
		TeamSlug: team.Slug, PaymentID: payment.PaymentID,
	})
	require.NoError(t, err)
	assert.False(t, warning)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Empty(t, d.txRepo.txs)
}

func TestPaymentLifecycleEngine_Cancel_Authorized_Reverses(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)
	amount := authorized.Amount

	cancelled, warning, err := d.engine.Cancel(context.Background(), ports.CancelRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID, Amount: &amount,
	})
	require.NoError(t, err)
	assert.True(t, warning, "amount provided on cancel should warn, not error")
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.True(t, d.idempCache.invalidated[team.ID.String()+":"+cancelled.PaymentID], "cancel must invalidate the check cache for the mutated payment")
}

func TestPaymentLifecycleEngine_Cancel_Confirmed_Refunds(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)
	confirmed, _, err := d.engine.Confirm(context.Background(), ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID,
	})
	require.NoError(t, err)

	cancelled, _, err := d.engine.Cancel(context.Background(), ports.CancelRequest{
		TeamSlug: team.Slug, PaymentID: confirmed.PaymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, cancelled.Status)
	assert.NotNil(t, cancelled.RefundedAt)
	assert.True(t, d.idempCache.invalidated[team.ID.String()+":"+cancelled.PaymentID], "refund must invalidate the check cache for the mutated payment")
}

func TestPaymentLifecycleEngine_Cancel_AdapterFailureRollsBack(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)

	d.bank.releaseFn = func(ctx context.Context, authCode string) error {
		return assert.AnError
	}

	_, _, err := d.engine.Cancel(context.Background(), ports.CancelRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 502, appErr.HTTPStatus)

	reloaded, err := d.paymentRepo.GetByID(context.Background(), authorized.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthorized, reloaded.Status)
	assert.Nil(t, reloaded.CancelledAt)
	assert.True(t, d.idempCache.invalidated[team.ID.String()+":"+authorized.PaymentID], "a failed reversal must still invalidate the check cache")
}

func TestPaymentLifecycleEngine_Cancel_TerminalRejected(t *testing.T) {
	team := testTeam("acme")
	d := newLifecycleTestDeps(team)
	authorized := seedAuthorizedPayment(t, d, team)
	confirmed, _, err := d.engine.Confirm(context.Background(), ports.ConfirmRequest{
		TeamSlug: team.Slug, PaymentID: authorized.PaymentID,
	})
	require.NoError(t, err)
	cancelled, _, err := d.engine.Cancel(context.Background(), ports.CancelRequest{
		TeamSlug: team.Slug, PaymentID: confirmed.PaymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, cancelled.Status)

	_, _, err = d.engine.Cancel(context.Background(), ports.CancelRequest{
		TeamSlug: team.Slug, PaymentID: cancelled.PaymentID,
	})
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
}
