package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"secure-payment-gateway/config"
	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/fsm"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/internal/platform/ids"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentLifecycleEngine implements ports.LifecycleEngine, grounded on the
// teacher's payment_service.go idempotency-then-transaction shape
// (`defer dbTx.Rollback`, encrypt-then-persist ordering) but re-targeted at
// the Payment aggregate and its FSM instead of a wallet ledger.
type PaymentLifecycleEngine struct {
	teamRepo    ports.TeamRepository
	paymentRepo ports.PaymentRepository
	txRepo      ports.TransactionRepository
	idempCache  ports.IdempotencyCache
	idempRepo   ports.IdempotencyRepository
	transactor  ports.DBTransactor
	bank        ports.BankAdapter
	auditSvc    ports.AuditService
	webhookSvc  ports.WebhookService
	metrics     ports.MetricsSink
	clock       ports.Clock
	limits      config.LimitsConfig
	cache       config.CacheConfig
	log         zerolog.Logger
}

// NewPaymentLifecycleEngine creates a new PaymentLifecycleEngine.
func NewPaymentLifecycleEngine(
	teamRepo ports.TeamRepository,
	paymentRepo ports.PaymentRepository,
	txRepo ports.TransactionRepository,
	idempCache ports.IdempotencyCache,
	idempRepo ports.IdempotencyRepository,
	transactor ports.DBTransactor,
	bank ports.BankAdapter,
	auditSvc ports.AuditService,
	webhookSvc ports.WebhookService,
	metrics ports.MetricsSink,
	clock ports.Clock,
	limits config.LimitsConfig,
	cache config.CacheConfig,
	log zerolog.Logger,
) *PaymentLifecycleEngine {
	return &PaymentLifecycleEngine{
		teamRepo:    teamRepo,
		paymentRepo: paymentRepo,
		txRepo:      txRepo,
		idempCache:  idempCache,
		idempRepo:   idempRepo,
		transactor:  transactor,
		bank:        bank,
		auditSvc:    auditSvc,
		webhookSvc:  webhookSvc,
		metrics:     metrics,
		clock:       clock,
		limits:      limits,
		cache:       cache,
		log:         log,
	}
}

// Init creates a new payment in NEW status (§4.4.1).
func (s *PaymentLifecycleEngine) Init(ctx context.Context, req ports.InitRequest) (*domain.Payment, error) {
	team, err := s.teamRepo.GetBySlug(ctx, req.TeamSlug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find team: %w", err))
	}
	if team == nil {
		s.metrics.IncCounter("payment_init_requests_total", map[string]string{"result": "failure"})
		return nil, apperror.ErrInitAuth("unknown team")
	}
	if !team.IsActive {
		s.metrics.IncCounter("payment_init_requests_total", map[string]string{"result": "failure"})
		return nil, apperror.ErrInitTeamInactive()
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInitValidation("amount must be positive")
	}
	if !team.SupportsCurrency(req.Currency) {
		return nil, apperror.ErrInitValidation("currency not supported for this team")
	}
	if len(req.Items) > 0 {
		var sum int64
		for _, item := range req.Items {
			sum += item.Amount * int64(item.Quantity)
		}
		diff := sum - req.Amount
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			return nil, apperror.ErrInitItemsMismatch()
		}
	}
	if !team.WithinPerPaymentLimits(req.Amount) {
		return nil, apperror.ErrInitLimitExceeded()
	}
	if s.limits.GlobalMinAmount > 0 && req.Amount < s.limits.GlobalMinAmount {
		return nil, apperror.ErrInitLimitExceeded()
	}
	if s.limits.GlobalMaxAmount > 0 && req.Amount > s.limits.GlobalMaxAmount {
		return nil, apperror.ErrInitLimitExceeded()
	}

	now := s.clock.Now()
	if team.Limits.DailyAmount > 0 || team.Limits.DailyTransactions > 0 {
		dayTotal, dayCount, err := s.paymentRepo.SumAmountSince(ctx, team.ID, now.Truncate(24*time.Hour))
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check daily cap: %w", err))
		}
		if team.Limits.DailyAmount > 0 && dayTotal+req.Amount > team.Limits.DailyAmount {
			return nil, apperror.ErrInitLimitExceeded()
		}
		if team.Limits.DailyTransactions > 0 && dayCount+1 > team.Limits.DailyTransactions {
			return nil, apperror.ErrInitLimitExceeded()
		}
	}
	if team.Limits.MonthlyAmount > 0 {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthTotal, _, err := s.paymentRepo.SumAmountSince(ctx, team.ID, monthStart)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check monthly cap: %w", err))
		}
		if monthTotal+req.Amount > team.Limits.MonthlyAmount {
			return nil, apperror.ErrInitLimitExceeded()
		}
	}

	expiry := req.PaymentExpiry
	if expiry == 0 {
		expiry = s.limits.DefaultPaymentExpiry
	}
	if expiry < s.limits.MinPaymentExpiry {
		expiry = s.limits.MinPaymentExpiry
	}
	if expiry > s.limits.MaxPaymentExpiry {
		expiry = s.limits.MaxPaymentExpiry
	}

	publicID, err := ids.NewPublicPaymentID()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate payment id: %w", err))
	}

	urls := domain.TeamURLs{
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		NotificationURL: req.NotificationURL,
	}
	if urls.SuccessURL == "" {
		urls.SuccessURL = team.URLs.SuccessURL
	}
	if urls.FailURL == "" {
		urls.FailURL = team.URLs.FailURL
	}
	if urls.NotificationURL == "" {
		urls.NotificationURL = team.URLs.NotificationURL
	}

	payment := &domain.Payment{
		ID:          uuid.New(),
		PaymentID:   publicID,
		OrderID:     req.OrderID,
		TeamID:      team.ID,
		TeamSlug:    team.Slug,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      domain.StatusNew,
		Description: req.Description,
		URLs:        urls,
		ExpiresAt:   now.Add(expiry),
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    req.Data,
		Email:       req.Email,
		Language:    req.Language,
		Version:     0,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.metrics.IncCounter("payment_init_requests_total", map[string]string{"result": "failure"})
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	s.auditSvc.Log(ctx, domain.AuditLogEntry{
		Actor:     team.Slug,
		Action:    domain.AuditActionInit,
		PaymentID: &payment.PaymentID,
		TeamSlug:  &team.Slug,
		Outcome:   domain.AuditOutcomeSuccess,
	})
	s.metrics.IncCounter("payment_init_requests_total", map[string]string{"result": "success"})
	s.metrics.ObserveHistogram("payment_init_amount_total", float64(payment.Amount), map[string]string{"currency": string(payment.Currency)})

	return payment, nil
}

// Confirm captures a previously authorized payment (§4.4.3).
func (s *PaymentLifecycleEngine) Confirm(ctx context.Context, req ports.ConfirmRequest) (*domain.Payment, bool, error) {
	team, err := s.teamRepo.GetBySlug(ctx, req.TeamSlug)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find team: %w", err))
	}
	if team == nil {
		return nil, false, apperror.ErrConfirmAuth("unknown team")
	}

	idempKey := ""
	if key, ok := req.Data[domain.MetaIdempotencyKey]; ok && key != "" {
		idempKey = domain.BuildConfirmKey(team.ID, key)
		if cached, hit, err := s.idempCache.Get(ctx, idempKey); err == nil && hit {
			return s.unmarshalCachedPayment(cached)
		}
		if rec, err := s.idempRepo.Get(ctx, domain.ScopeConfirm, team.ID, key); err == nil && rec != nil {
			return s.unmarshalCachedPayment(rec.ResponseJSON)
		}
	}

	payment, err := s.paymentRepo.GetByPaymentID(ctx, team.ID, req.PaymentID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find payment: %w", err))
	}
	if payment == nil {
		return nil, false, apperror.ErrConfirmNotFound()
	}
	if req.Amount != nil && *req.Amount != payment.Amount {
		return nil, false, apperror.ErrConfirmValidation("confirmed amount must equal the authorized amount")
	}
	if !fsm.CanTransition(payment.Status, fsm.EventConfirmStart) {
		return nil, false, apperror.ErrConfirmInvalidState(fmt.Sprintf("payment in status %s cannot be confirmed", payment.Status))
	}

	rows, claimed, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, payment.Version, func(p *domain.Payment) {
		p.Status = domain.StatusConfirming
	})
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("claim confirm: %w", err))
	}
	if rows == 0 {
		return nil, false, apperror.ErrConfirmConflict()
	}
	s.invalidateCheckCache(ctx, claimed)

	authCode := s.latestAuthCode(ctx, payment.ID)

	captureResult, bankErr := s.bank.Capture(ctx, authCode, payment.Amount)
	if bankErr != nil || captureResult == nil || !captureResult.Approved {
		_, rolledBack, rbErr := s.paymentRepo.UpdateStatus(ctx, claimed.ID, claimed.Version, func(p *domain.Payment) {
			p.Status = domain.StatusAuthorized
		})
		if rbErr != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("rollback confirm: %w", rbErr))
		}
		s.invalidateCheckCache(ctx, rolledBack)
		_ = s.recordTransaction(ctx, payment.ID, domain.TransactionTypeCapture, domain.TransactionStatusDeclined, payment.Amount, "", "")
		if bankErr == nil {
			bankErr = fmt.Errorf("capture declined")
		}
		s.auditSvc.Log(ctx, domain.AuditLogEntry{
			Actor: team.Slug, Action: domain.AuditActionConfirm, PaymentID: &payment.PaymentID,
			TeamSlug: &team.Slug, Outcome: domain.AuditOutcomeFailure,
		})
		return rolledBack, false, apperror.ErrConfirmAdapterFailure(bankErr)
	}

	now := s.clock.Now()
	_, confirmed, err := s.paymentRepo.UpdateStatus(ctx, claimed.ID, claimed.Version, func(p *domain.Payment) {
		p.Status = domain.StatusConfirmed
		p.ConfirmedAt = &now
	})
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("finalize confirm: %w", err))
	}
	s.invalidateCheckCache(ctx, confirmed)
	_ = s.recordTransaction(ctx, payment.ID, domain.TransactionTypeCapture, domain.TransactionStatusApproved, payment.Amount, captureResult.BankRef, "")

	s.auditSvc.Log(ctx, domain.AuditLogEntry{
		Actor: team.Slug, Action: domain.AuditActionConfirm, PaymentID: &payment.PaymentID,
		TeamSlug: &team.Slug, Outcome: domain.AuditOutcomeSuccess,
	})
	s.metrics.IncCounter("payment_confirm_requests_total", map[string]string{"result": "success"})
	if err := s.webhookSvc.EnqueueWebhook(ctx, confirmed); err != nil {
		s.log.Warn().Err(err).Str("payment_id", confirmed.PaymentID).Msg("enqueue confirm webhook failed")
	}

	if idempKey != "" {
		s.cacheMutationResult(ctx, idempKey, domain.ScopeConfirm, team.ID, req.Data[domain.MetaIdempotencyKey], confirmed)
	}

	return confirmed, false, nil
}

// Cancel dispatches to FULL_CANCELLATION/FULL_REVERSAL/FULL_REFUND based on
// the payment's current status (§4.4.4).
func (s *PaymentLifecycleEngine) Cancel(ctx context.Context, req ports.CancelRequest) (*domain.Payment, bool, error) {
	team, err := s.teamRepo.GetBySlug(ctx, req.TeamSlug)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find team: %w", err))
	}
	if team == nil {
		return nil, false, apperror.ErrCancelAuth("unknown team")
	}

	idempKey := ""
	if key, ok := req.Data[domain.MetaExternalRequestID]; ok && key != "" {
		idempKey = domain.BuildCancelKey(team.ID, key)
		if cached, hit, err := s.idempCache.Get(ctx, idempKey); err == nil && hit {
			p, _, err := s.unmarshalCachedPayment(cached)
			return p, false, err
		}
		if rec, err := s.idempRepo.Get(ctx, domain.ScopeCancel, team.ID, key); err == nil && rec != nil {
			p, _, err := s.unmarshalCachedPayment(rec.ResponseJSON)
			return p, false, err
		}
	}

	payment, err := s.paymentRepo.GetByPaymentID(ctx, team.ID, req.PaymentID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find payment: %w", err))
	}
	if payment == nil {
		return nil, false, apperror.ErrCancelNotFound()
	}

	warning := req.Amount != nil

	var event fsm.Event
	var requiresAdapter bool
	switch payment.Status {
	case domain.StatusInit, domain.StatusNew:
		event = fsm.EventCancel
	case domain.StatusAuthorized:
		event = fsm.EventReverse
		requiresAdapter = true
	case domain.StatusConfirmed, domain.StatusCaptured, domain.StatusCompleted:
		event = fsm.EventRefundFull
		requiresAdapter = true
	default:
		return nil, false, apperror.ErrCancelInvalidState(fmt.Sprintf("payment in status %s cannot be cancelled", payment.Status))
	}

	dest, err := fsm.Apply(payment.Status, event, nil)
	if err != nil {
		return nil, false, apperror.ErrCancelInvalidState(err.Error())
	}

	priorStatus := payment.Status
	now := s.clock.Now()
	rows, claimed, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, payment.Version, func(p *domain.Payment) {
		p.Status = dest
		p.CancelledAt = &now
		if dest == domain.StatusRefunded {
			p.RefundedAt = &now
		}
	})
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("claim cancel: %w", err))
	}
	if rows == 0 {
		return nil, false, apperror.ErrCancelConflict()
	}
	s.invalidateCheckCache(ctx, claimed)

	if requiresAdapter {
		var adapterErr error
		var txType domain.TransactionType
		var bankRef string
		if event == fsm.EventReverse {
			txType = domain.TransactionTypeReverse
			adapterErr = s.bank.Release(ctx, s.latestAuthCode(ctx, payment.ID))
		} else {
			txType = domain.TransactionTypeRefund
			var refundResult *ports.RefundResult
			refundResult, adapterErr = s.bank.Refund(ctx, s.latestBankRef(ctx, payment.ID), payment.Amount)
			if adapterErr == nil && refundResult != nil {
				bankRef = refundResult.RefundRef
			}
		}
		if adapterErr != nil {
			_, rolledBack, rbErr := s.paymentRepo.UpdateStatus(ctx, claimed.ID, claimed.Version, func(p *domain.Payment) {
				p.Status = priorStatus
				p.CancelledAt = nil
				p.RefundedAt = nil
			})
			if rbErr != nil {
				return nil, false, apperror.InternalError(fmt.Errorf("rollback cancel: %w", rbErr))
			}
			s.invalidateCheckCache(ctx, rolledBack)
			_ = s.recordTransaction(ctx, payment.ID, txType, domain.TransactionStatusError, payment.Amount, "", "")
			return rolledBack, false, apperror.ErrCancelAdapterFailure(adapterErr)
		}
		_ = s.recordTransaction(ctx, payment.ID, txType, domain.TransactionStatusApproved, payment.Amount, bankRef, "")
	}

	s.auditSvc.Log(ctx, domain.AuditLogEntry{
		Actor: team.Slug, Action: domain.AuditActionCancel, PaymentID: &payment.PaymentID,
		TeamSlug: &team.Slug, Outcome: domain.AuditOutcomeSuccess,
	})
	s.metrics.IncCounter("payment_cancel_requests_total", map[string]string{"result": "success", "status": string(dest)})
	if err := s.webhookSvc.EnqueueWebhook(ctx, claimed); err != nil {
		s.log.Warn().Err(err).Str("payment_id", claimed.PaymentID).Msg("enqueue cancel webhook failed")
	}

	if idempKey != "" {
		s.cacheMutationResult(ctx, idempKey, domain.ScopeCancel, team.ID, req.Data[domain.MetaExternalRequestID], claimed)
	}

	return claimed, warning, nil
}

// invalidateCheckCache drops every cached Check response that could be
// serving a stale status for p, per §4.2: "on mutation the engine must
// invalidate all check-cache entries whose (teamId, paymentId|orderId)
// overlap the mutated payment." Best-effort: a cache failure here never
// fails the already-committed write.
func (s *PaymentLifecycleEngine) invalidateCheckCache(ctx context.Context, p *domain.Payment) {
	if p == nil {
		return
	}
	if err := s.idempCache.Invalidate(ctx, p.TeamID, p.PaymentID, p.OrderID); err != nil {
		s.log.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("invalidate check cache failed")
	}
}

func (s *PaymentLifecycleEngine) latestAuthCode(ctx context.Context, paymentID uuid.UUID) string {
	txs, err := s.txRepo.ListByPayment(ctx, paymentID)
	if err != nil {
		return ""
	}
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Type == domain.TransactionTypeAuthorize && txs[i].Status == domain.TransactionStatusApproved {
			return txs[i].AuthCode
		}
	}
	return ""
}

func (s *PaymentLifecycleEngine) latestBankRef(ctx context.Context, paymentID uuid.UUID) string {
	txs, err := s.txRepo.ListByPayment(ctx, paymentID)
	if err != nil {
		return ""
	}
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Type == domain.TransactionTypeCapture && txs[i].Status == domain.TransactionStatusApproved {
			return txs[i].BankRef
		}
	}
	return ""
}

func (s *PaymentLifecycleEngine) recordTransaction(ctx context.Context, paymentID uuid.UUID, typ domain.TransactionType, status domain.TransactionStatus, amount int64, bankRef, responseCode string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn := &domain.Transaction{
		ID:           uuid.New(),
		PaymentID:    paymentID,
		Type:         typ,
		Status:       status,
		BankRef:      bankRef,
		ResponseCode: responseCode,
		Amount:       amount,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

// cacheMutationResult persists the idempotency record both in the fast
// cache and the durable backstop, best-effort: a cache/DB failure here
// never fails the already-committed mutation.
func (s *PaymentLifecycleEngine) cacheMutationResult(ctx context.Context, cacheKey string, scope domain.IdempotencyScope, teamID uuid.UUID, rawKey string, payment *domain.Payment) {
	respJSON, err := json.Marshal(payment)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal idempotency response failed")
		return
	}
	if err := s.idempCache.Set(ctx, cacheKey, respJSON, s.cache.MutationTTL); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("cache idempotency result failed")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("begin idempotency persist tx failed")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.clock.Now()
	rec := &domain.IdempotencyRecord{
		Scope:        scope,
		TeamID:       teamID,
		Key:          rawKey,
		ResponseJSON: respJSON,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cache.MutationTTL),
	}
	if err := s.idempRepo.Create(ctx, dbTx, rec); err != nil {
		s.log.Warn().Err(err).Msg("persist idempotency record failed")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Warn().Err(err).Msg("commit idempotency persist failed")
	}
}

func (s *PaymentLifecycleEngine) unmarshalCachedPayment(data []byte) (*domain.Payment, bool, error) {
	p := &domain.Payment{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("unmarshal cached payment: %w", err))
	}
	return p, false, nil
}

var _ ports.LifecycleEngine = (*PaymentLifecycleEngine)(nil)
