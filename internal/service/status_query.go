package service

import (
	"context"
	"encoding/json"
	"fmt"

	"secure-payment-gateway/config"
	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// statusQueryService resolves Check requests (C9), cache-first per §4.2,
// grounded on the lifecycle engine's own cache-then-DB shape but read-only:
// no write path, no version guard, just a TTL-bounded cache populated on
// first read and invalidated by any mutation or the expiry sweep.
type statusQueryService struct {
	paymentRepo ports.PaymentRepository
	teamRepo    ports.TeamRepository
	idempCache  ports.IdempotencyCache
	cacheCfg    config.CacheConfig
	log         zerolog.Logger
}

// NewStatusQueryService builds the status-query service.
func NewStatusQueryService(
	paymentRepo ports.PaymentRepository,
	teamRepo ports.TeamRepository,
	idempCache ports.IdempotencyCache,
	cacheCfg config.CacheConfig,
	log zerolog.Logger,
) ports.StatusQueryService {
	return &statusQueryService{
		paymentRepo: paymentRepo,
		teamRepo:    teamRepo,
		idempCache:  idempCache,
		cacheCfg:    cacheCfg,
		log:         log,
	}
}

// flagString renders the optional-flag set into a short, order-stable
// suffix for the cache key, so two requests differing only in which
// fields they ask for don't collide on the same cached body (§4.2).
func flagString(req ports.CheckRequest) string {
	bit := func(b bool, c byte) byte {
		if b {
			return c
		}
		return '-'
	}
	return string([]byte{
		bit(req.WithCardDetails, 'c'),
		bit(req.WithTransactions, 't'),
		bit(req.WithCustomer, 'u'),
		bit(req.WithReceipt, 'r'),
	})
}

// project zeroes out fields the caller didn't ask for, per §11's
// optional-flag projection. Transactions are projected by the caller
// (ReportingService.ListTransactions) since Payment itself carries none.
func project(p domain.Payment, req ports.CheckRequest) domain.Payment {
	if !req.WithCardDetails {
		p.CardMask = ""
	}
	if !req.WithReceipt {
		p.Receipt = nil
	}
	if !req.WithCustomer {
		p.Email = ""
	}
	return p
}

// Check resolves a status-query request, preferring PaymentId over OrderId
// and serving from cache when available (§4.4.5).
func (s *statusQueryService) Check(ctx context.Context, req ports.CheckRequest) ([]domain.Payment, error) {
	team, err := s.teamRepo.GetBySlug(ctx, req.TeamSlug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup team: %w", err))
	}
	if team == nil {
		return nil, apperror.ErrInitAuth("unknown team")
	}

	lookupKey := req.PaymentID
	if lookupKey == "" {
		lookupKey = req.OrderID
	}
	cacheKey := domain.BuildCheckKey(team.ID, lookupKey, flagString(req), req.Language)

	if cached, ok, err := s.idempCache.Get(ctx, cacheKey); err == nil && ok {
		var payments []domain.Payment
		if jsonErr := json.Unmarshal(cached, &payments); jsonErr == nil {
			return payments, nil
		}
		s.log.Warn().Str("key", cacheKey).Msg("status query: discarding unparseable cache entry")
	}

	payments, err := s.lookup(ctx, team, req)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, apperror.ErrCheckNotFound()
	}

	projected := make([]domain.Payment, len(payments))
	for i, p := range payments {
		projected[i] = project(p, req)
	}

	if body, err := json.Marshal(projected); err == nil {
		ttl := CheckTTL(payments, s.cacheCfg.CheckTTLActive, s.cacheCfg.CheckTTLTerminal)
		if setErr := s.idempCache.Set(ctx, cacheKey, body, ttl); setErr != nil {
			s.log.Warn().Err(setErr).Str("key", cacheKey).Msg("status query: cache write failed")
		}
	}

	return projected, nil
}

func (s *statusQueryService) lookup(ctx context.Context, team *domain.Team, req ports.CheckRequest) ([]domain.Payment, error) {
	if req.PaymentID != "" {
		payment, err := s.paymentRepo.GetByPaymentID(ctx, team.ID, req.PaymentID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lookup payment: %w", err))
		}
		if payment == nil {
			return nil, nil
		}
		return []domain.Payment{*payment}, nil
	}
	if req.OrderID != "" {
		payments, err := s.paymentRepo.GetByOrderID(ctx, team.ID, req.OrderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lookup payments by order: %w", err))
		}
		return payments, nil
	}
	return nil, apperror.Validation("either paymentId or orderId is required")
}

var _ ports.StatusQueryService = (*statusQueryService)(nil)
