package bank

import (
	"context"
	"fmt"
	"sync"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// InMemory is a deterministic stub BankAdapter: a narrow interface with a
// trivial in-process implementation standing in for the real network call.
// The outcome of Authorize is keyed off the PAN's last digit so integration
// tests can drive approve/decline/error paths without a real processor:
//
//	...0, ...1-...8  approved
//	...9             declined (insufficient_funds)
//	...0 with len(PAN) < 13 (caught upstream by ValidateCard) n/a
//
// A PAN ending in the literal suffix "0000" simulates a processor timeout
// instead of a normal decline, to exercise the engine's adapter_failure path.
type InMemory struct {
	mu      sync.Mutex
	authed  map[string]string // authCode -> masked PAN, for Capture/Release bookkeeping
	refunds map[string]bool   // bankRef already refunded
}

// NewInMemory creates a new deterministic in-memory bank adapter.
func NewInMemory() *InMemory {
	return &InMemory{authed: map[string]string{}, refunds: map[string]bool{}}
}

func (b *InMemory) Authorize(ctx context.Context, card ports.CardInput, amount int64, currency domain.Currency) (*ports.AuthorizeResult, error) {
	if len(card.PAN) >= 4 && card.PAN[len(card.PAN)-4:] == "0000" {
		return nil, fmt.Errorf("processor timeout")
	}
	if card.PAN[len(card.PAN)-1] == '9' {
		return &ports.AuthorizeResult{
			Approved:       false,
			DeclineCode:    "insufficient_funds",
			DeclineMessage: "the issuing bank declined the authorization",
		}, nil
	}

	authCode := uuid.New().String()[:8]
	b.mu.Lock()
	b.authed[authCode] = card.PAN
	b.mu.Unlock()

	return &ports.AuthorizeResult{
		Approved: true,
		AuthCode: authCode,
		RRN:      uuid.New().String()[:12],
	}, nil
}

func (b *InMemory) Capture(ctx context.Context, authCode string, amount int64) (*ports.CaptureResult, error) {
	b.mu.Lock()
	_, known := b.authed[authCode]
	b.mu.Unlock()
	if !known {
		return &ports.CaptureResult{Approved: false}, nil
	}
	return &ports.CaptureResult{Approved: true, BankRef: "cap_" + authCode}, nil
}

func (b *InMemory) Release(ctx context.Context, authCode string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.authed, authCode)
	return nil
}

func (b *InMemory) Refund(ctx context.Context, bankRef string, amount int64) (*ports.RefundResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refunds[bankRef] {
		return nil, fmt.Errorf("bank ref %s already refunded", bankRef)
	}
	b.refunds[bankRef] = true
	return &ports.RefundResult{Approved: true, RefundRef: "rfd_" + bankRef}, nil
}

var _ ports.BankAdapter = (*InMemory)(nil)
