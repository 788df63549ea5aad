package service

import (
	"context"
	"errors"
	"testing"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportingTxRepo wraps fakeTxRepo with an error hook, used by this file
// alone to exercise the reporting service's failure paths without
// disturbing the lifecycle engine's tests.
type reportingTxRepo struct {
	*fakeTxRepo
	listByTeamErr error
}

func (r *reportingTxRepo) ListByTeam(ctx context.Context, teamID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if r.listByTeamErr != nil {
		return nil, r.listByTeamErr
	}
	var out []domain.Transaction
	for _, t := range r.txs {
		out = append(out, t)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestReportingService_ListTransactions_ByPayment(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	teamID := uuid.New()
	payment := &domain.Payment{ID: uuid.New(), PaymentID: "pay_1", TeamID: teamID, Status: domain.StatusNew}
	require.NoError(t, paymentRepo.Create(context.Background(), payment))

	txRepo := &reportingTxRepo{fakeTxRepo: &fakeTxRepo{txs: []domain.Transaction{
		{ID: uuid.New(), PaymentID: payment.ID, Type: domain.TransactionTypeAuthorize},
	}}}

	svc := NewReportingService(txRepo, paymentRepo)

	result, err := svc.ListTransactions(context.Background(), teamID, &payment.ID)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestReportingService_ListTransactions_ByPayment_WrongTeam(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	payment := &domain.Payment{ID: uuid.New(), PaymentID: "pay_1", TeamID: uuid.New(), Status: domain.StatusNew}
	require.NoError(t, paymentRepo.Create(context.Background(), payment))

	txRepo := &reportingTxRepo{fakeTxRepo: &fakeTxRepo{}}
	svc := NewReportingService(txRepo, paymentRepo)

	_, err := svc.ListTransactions(context.Background(), uuid.New(), &payment.ID)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.HTTPStatus)
}

func TestReportingService_ListTransactions_ByTeam(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	teamID := uuid.New()
	txRepo := &reportingTxRepo{fakeTxRepo: &fakeTxRepo{txs: []domain.Transaction{
		{ID: uuid.New(), Type: domain.TransactionTypeAuthorize},
		{ID: uuid.New(), Type: domain.TransactionTypeCapture},
	}}}
	svc := NewReportingService(txRepo, paymentRepo)

	result, err := svc.ListTransactions(context.Background(), teamID, nil)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestReportingService_ListTransactions_ByTeam_Error(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	txRepo := &reportingTxRepo{fakeTxRepo: &fakeTxRepo{}, listByTeamErr: errors.New("db down")}
	svc := NewReportingService(txRepo, paymentRepo)

	_, err := svc.ListTransactions(context.Background(), uuid.New(), nil)
	require.Error(t, err)
}
