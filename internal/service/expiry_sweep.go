package service

import (
	"context"
	"fmt"
	"sync"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/fsm"
	"secure-payment-gateway/internal/core/ports"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
)

// deadlineEligible is the set of statuses for which an elapsed deadline
// means the bank never answered, as opposed to the merchant simply never
// completing the flow (§4.4.6): these resolve to DEADLINE_EXPIRED, every
// other non-terminal status resolves to EXPIRED.
var deadlineEligible = map[domain.Status]bool{
	domain.StatusAuthorizing: true,
	domain.StatusAuthorized:  true,
	domain.StatusConfirming:  true,
}

// sweepBatchSize bounds how many candidate rows a single SweepOnce call
// loads, so a large backlog is drained over several ticks instead of in
// one unbounded scan.
const sweepBatchSize = 500

// ExpirySweepConfig tunes the bounded fan-out pool used to apply
// transitions concurrently.
type ExpirySweepConfig struct {
	MaxWorkers int
}

// DefaultExpirySweepConfig returns sane defaults for a single sweeper
// instance running alongside live traffic.
func DefaultExpirySweepConfig() ExpirySweepConfig {
	return ExpirySweepConfig{MaxWorkers: 16}
}

// expirySweeper implements ports.ExpirySweeper, grounded on the retrieval
// pack's bounded worker-pool pattern (github.com/gammazero/workerpool) for
// fanning settlement-style batch work out across a fixed number of
// goroutines instead of spawning one per row.
type expirySweeper struct {
	paymentRepo ports.PaymentRepository
	idempCache  ports.IdempotencyCache
	clock       ports.Clock
	metrics     ports.MetricsSink
	log         zerolog.Logger
	cfg         ExpirySweepConfig
}

// NewExpirySweeper builds the periodic expiry sweep service (§4.4.6).
func NewExpirySweeper(
	paymentRepo ports.PaymentRepository,
	idempCache ports.IdempotencyCache,
	clk ports.Clock,
	metrics ports.MetricsSink,
	log zerolog.Logger,
	cfg ExpirySweepConfig,
) ports.ExpirySweeper {
	if cfg.MaxWorkers <= 0 {
		cfg = DefaultExpirySweepConfig()
	}
	return &expirySweeper{
		paymentRepo: paymentRepo,
		idempCache:  idempCache,
		clock:       clk,
		metrics:     metrics,
		log:         log,
		cfg:         cfg,
	}
}

// SweepOnce scans for non-terminal payments past their deadline and
// transitions each one through the same FSM/version-guarded write path
// live traffic uses, so a sweep racing a concurrent Confirm or Cancel
// simply loses the optimistic-concurrency race rather than corrupting
// state. Individual row failures never abort the batch; they are collected
// and the first one is returned with the swept count once every row has run.
func (s *expirySweeper) SweepOnce(ctx context.Context) (int, error) {
	candidates, err := s.paymentRepo.ListNonTerminalExpiring(ctx, s.clock.Now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expiring payments: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	wp := workerpool.New(s.cfg.MaxWorkers)
	var (
		swept int
		errMu errorCollector
	)
	for i := range candidates {
		payment := candidates[i]
		wp.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			ok, err := s.sweepOne(ctx, payment)
			errMu.add(err)
			if ok {
				errMu.incr()
			}
		})
	}
	wp.StopWait()

	swept = errMu.count
	s.metrics.IncCounter("expiry_sweep_runs_total", nil)
	s.metrics.SetGauge("expiry_sweep_last_batch_size", float64(len(candidates)), nil)
	s.metrics.ObserveHistogram("expiry_sweep_payments_swept", float64(swept), nil)
	if err := errMu.firstErr(); err != nil {
		return swept, err
	}
	return swept, nil
}

// sweepOne applies the expiry transition to a single payment, resolving
// EXPIRED vs DEADLINE_EXPIRED from its current status and claiming the
// write with the version it was loaded under. A conflict (another writer
// already moved the row) is not an error: the row no longer needs sweeping.
func (s *expirySweeper) sweepOne(ctx context.Context, payment domain.Payment) (bool, error) {
	resolver := func(candidates []domain.Status) domain.Status {
		if deadlineEligible[payment.Status] {
			return domain.StatusDeadlineExpired
		}
		return domain.StatusExpired
	}
	target, err := fsm.Apply(payment.Status, fsm.EventExpirySweep, resolver)
	if err != nil {
		// Another tick (or a concurrent request) already moved this row
		// out of a sweep-eligible status between the list scan and now.
		return false, nil
	}

	rows, _, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, payment.Version, func(p *domain.Payment) {
		p.Status = target
	})
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Msg("expiry sweep: update failed")
		return false, err
	}
	if rows == 0 {
		// Lost the optimistic-concurrency race to a concurrent writer.
		return false, nil
	}

	if invErr := s.idempCache.Invalidate(ctx, payment.TeamID, payment.PaymentID, payment.OrderID); invErr != nil {
		s.log.Warn().Err(invErr).Str("payment_id", payment.PaymentID).Msg("expiry sweep: cache invalidate failed")
	}
	return true, nil
}

// errorCollector accumulates a success count and the first error seen
// across concurrent workers without needing a channel per submission.
type errorCollector struct {
	mu    sync.Mutex
	count int
	first error
}

func (c *errorCollector) incr() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *errorCollector) add(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.first == nil {
		c.first = err
	}
	c.mu.Unlock()
}

func (c *errorCollector) firstErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.first
}

var _ ports.ExpirySweeper = (*expirySweeper)(nil)
