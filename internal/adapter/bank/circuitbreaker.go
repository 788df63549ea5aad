package bank

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
)

// state is one of the three classic circuit-breaker states, grounded on
// the retrieval pack's distributed Redis-backed breaker but kept in-process
// here since the bank adapter call itself, not a shared cache, is the
// resource being protected.
type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// ErrCircuitOpen is returned immediately, without calling the wrapped
// adapter, while the breaker is open.
var ErrCircuitOpen = errors.New("bank adapter circuit breaker is open")

// CircuitBreakerConfig tunes the breaker's thresholds and timing.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // consecutive half-open successes before closing
	OpenTimeout      time.Duration // how long the circuit stays open before probing
}

// DefaultCircuitBreakerConfig returns sensible defaults for a single
// acquiring-bank connection.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// CircuitBreaker wraps a BankAdapter, tripping open after FailureThreshold
// consecutive errors and rejecting calls with ErrCircuitOpen until
// OpenTimeout elapses, at which point one probe call is allowed through
// (half-open) to decide whether to close again. This bounds the retry
// behavior the engine itself is forbidden from performing (§4.5): the
// engine still sees a single call per operation, but that call fails fast
// once the downstream is known-bad instead of hanging on every request.
type CircuitBreaker struct {
	next ports.BankAdapter
	cfg  CircuitBreakerConfig
	clk  ports.Clock

	mu              sync.Mutex
	st              state
	consecutiveFail int
	consecutiveOK   int
	openedAt        time.Time
}

// NewCircuitBreaker wraps next with a circuit breaker using cfg.
func NewCircuitBreaker(next ports.BankAdapter, cfg CircuitBreakerConfig, clk ports.Clock) *CircuitBreaker {
	return &CircuitBreaker{next: next, cfg: cfg, clk: clk, st: stateClosed}
}

// allow reports whether a call may proceed, transitioning open->half-open
// once the timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.st {
	case stateClosed, stateHalfOpen:
		return true
	case stateOpen:
		if cb.clk.Now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
			cb.st = stateHalfOpen
			cb.consecutiveOK = 0
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFail = 0
	switch cb.st {
	case stateHalfOpen:
		cb.consecutiveOK++
		if cb.consecutiveOK >= cb.cfg.SuccessThreshold {
			cb.st = stateClosed
		}
	case stateOpen:
		cb.st = stateClosed
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveOK = 0
	switch cb.st {
	case stateHalfOpen:
		cb.st = stateOpen
		cb.openedAt = cb.clk.Now()
	case stateClosed:
		cb.consecutiveFail++
		if cb.consecutiveFail >= cb.cfg.FailureThreshold {
			cb.st = stateOpen
			cb.openedAt = cb.clk.Now()
		}
	}
}

func (cb *CircuitBreaker) Authorize(ctx context.Context, card ports.CardInput, amount int64, currency domain.Currency) (*ports.AuthorizeResult, error) {
	if !cb.allow() {
		return nil, fmt.Errorf("authorize: %w", ErrCircuitOpen)
	}
	result, err := cb.next.Authorize(ctx, card, amount, currency)
	if err != nil {
		cb.recordFailure()
		return nil, err
	}
	cb.recordSuccess()
	return result, nil
}

func (cb *CircuitBreaker) Capture(ctx context.Context, authCode string, amount int64) (*ports.CaptureResult, error) {
	if !cb.allow() {
		return nil, fmt.Errorf("capture: %w", ErrCircuitOpen)
	}
	result, err := cb.next.Capture(ctx, authCode, amount)
	if err != nil {
		cb.recordFailure()
		return nil, err
	}
	cb.recordSuccess()
	return result, nil
}

func (cb *CircuitBreaker) Release(ctx context.Context, authCode string) error {
	if !cb.allow() {
		return fmt.Errorf("release: %w", ErrCircuitOpen)
	}
	if err := cb.next.Release(ctx, authCode); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) Refund(ctx context.Context, bankRef string, amount int64) (*ports.RefundResult, error) {
	if !cb.allow() {
		return nil, fmt.Errorf("refund: %w", ErrCircuitOpen)
	}
	result, err := cb.next.Refund(ctx, bankRef, amount)
	if err != nil {
		cb.recordFailure()
		return nil, err
	}
	cb.recordSuccess()
	return result, nil
}

var _ ports.BankAdapter = (*CircuitBreaker)(nil)
