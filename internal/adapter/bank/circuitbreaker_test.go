package bank

import (
	"context"
	"errors"
	"testing"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/internal/platform/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAdapter struct {
	authorizeErr error
}

func (a *scriptedAdapter) Authorize(ctx context.Context, card ports.CardInput, amount int64, currency domain.Currency) (*ports.AuthorizeResult, error) {
	if a.authorizeErr != nil {
		return nil, a.authorizeErr
	}
	return &ports.AuthorizeResult{Approved: true, AuthCode: "AUTH1"}, nil
}

func (a *scriptedAdapter) Capture(ctx context.Context, authCode string, amount int64) (*ports.CaptureResult, error) {
	return &ports.CaptureResult{Approved: true}, nil
}

func (a *scriptedAdapter) Release(ctx context.Context, authCode string) error { return nil }

func (a *scriptedAdapter) Refund(ctx context.Context, bankRef string, amount int64) (*ports.RefundResult, error) {
	return &ports.RefundResult{Approved: true}, nil
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	inner := &scriptedAdapter{authorizeErr: errors.New("network error")}
	cb := NewCircuitBreaker(inner, CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: time.Minute}, fake)

	for i := 0; i < 3; i++ {
		_, err := cb.Authorize(context.Background(), ports.CardInput{}, 1, domain.CurrencyRUB)
		require.Error(t, err)
	}

	_, err := cb.Authorize(context.Background(), ports.CardInput{}, 1, domain.CurrencyRUB)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	inner := &scriptedAdapter{authorizeErr: errors.New("network error")}
	cb := NewCircuitBreaker(inner, CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute}, fake)

	_, err := cb.Authorize(context.Background(), ports.CardInput{}, 1, domain.CurrencyRUB)
	require.Error(t, err)
	_, err = cb.Authorize(context.Background(), ports.CardInput{}, 1, domain.CurrencyRUB)
	require.ErrorIs(t, err, ErrCircuitOpen)

	fake.Advance(2 * time.Minute)
	inner.authorizeErr = nil

	result, err := cb.Authorize(context.Background(), ports.CardInput{}, 1, domain.CurrencyRUB)
	require.NoError(t, err)
	assert.True(t, result.Approved)

	cb.mu.Lock()
	st := cb.st
	cb.mu.Unlock()
	assert.Equal(t, stateClosed, st)
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	inner := &scriptedAdapter{}
	cb := NewCircuitBreaker(inner, DefaultCircuitBreakerConfig(), fake)

	for i := 0; i < 10; i++ {
		_, err := cb.Authorize(context.Background(), ports.CardInput{}, 1, domain.CurrencyRUB)
		require.NoError(t, err)
	}
}
