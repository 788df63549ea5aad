package service

import (
	"context"
	"fmt"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// dashboardListLimit bounds the team-wide transaction listing when no
// specific payment is named, so one team's dashboard query can't scan an
// unbounded transaction log.
const dashboardListLimit = 200

// reportingService implements ports.ReportingService, grounded on the
// teacher's reporting_service.go but re-pointed at Payment/Transaction:
// a payment-scoped listing first confirms the payment belongs to the
// calling team before reading its transaction log, a team-wide listing
// bounds itself to the most recent dashboardListLimit rows.
type reportingService struct {
	txRepo      ports.TransactionRepository
	paymentRepo ports.PaymentRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(txRepo ports.TransactionRepository, paymentRepo ports.PaymentRepository) ports.ReportingService {
	return &reportingService{txRepo: txRepo, paymentRepo: paymentRepo}
}

// ListTransactions returns a team's transaction history, optionally scoped
// to a single payment (§15).
func (s *reportingService) ListTransactions(ctx context.Context, teamID uuid.UUID, paymentID *uuid.UUID) ([]domain.Transaction, error) {
	if paymentID != nil {
		payment, err := s.paymentRepo.GetByID(ctx, *paymentID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("find payment: %w", err))
		}
		if payment == nil || payment.TeamID != teamID {
			return nil, apperror.ErrCheckNotFound()
		}

		txns, err := s.txRepo.ListByPayment(ctx, *paymentID)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		return txns, nil
	}

	txns, err := s.txRepo.ListByTeam(ctx, teamID, dashboardListLimit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return txns, nil
}

var _ ports.ReportingService = (*reportingService)(nil)
