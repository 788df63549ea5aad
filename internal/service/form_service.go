package service

import (
	"fmt"

	"context"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/fsm"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// RenderForm resolves the hosted-form GET (§4.4.2): transitions
// INIT|NEW → FORM_SHOWED, or returns the current payment untouched when
// it's already past that point (idempotent no-op, not an error).
func (s *PaymentLifecycleEngine) RenderForm(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByPublicID(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrCheckNotFound()
	}
	if payment.Status != domain.StatusInit && payment.Status != domain.StatusNew {
		return payment, nil
	}

	_, updated, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, payment.Version, func(p *domain.Payment) {
		p.Status = domain.StatusFormShowed
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transition form_showed: %w", err))
	}
	s.invalidateCheckCache(ctx, updated)
	return updated, nil
}

// SubmitForm validates and submits card data for authorization (§4.4.2).
// Card data is never logged or persisted; only the masked PAN survives on
// the Payment once the bank has answered, whether it approved or declined.
func (s *PaymentLifecycleEngine) SubmitForm(ctx context.Context, req ports.FormSubmitRequest) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByPublicID(ctx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrCheckNotFound()
	}
	if !fsm.CanTransition(payment.Status, fsm.EventAuthStart) {
		return nil, apperror.ErrConfirmInvalidState(fmt.Sprintf("payment in status %s cannot accept card data", payment.Status))
	}
	if err := ValidateCard(req.Card, s.clock.Now()); err != nil {
		return nil, apperror.ErrInitValidation(err.Error())
	}

	rows, claimed, err := s.paymentRepo.UpdateStatus(ctx, payment.ID, payment.Version, func(p *domain.Payment) {
		p.Status = domain.StatusAuthorizing
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("claim authorizing: %w", err))
	}
	if rows == 0 {
		return nil, apperror.ErrConfirmConflict()
	}
	s.invalidateCheckCache(ctx, claimed)

	result, bankErr := s.bank.Authorize(ctx, req.Card, payment.Amount, payment.Currency)
	maskedPAN := MaskPAN(req.Card.PAN)

	if bankErr != nil || result == nil || !result.Approved {
		_, rejected, rbErr := s.paymentRepo.UpdateStatus(ctx, claimed.ID, claimed.Version, func(p *domain.Payment) {
			p.Status = domain.StatusRejected
			p.CardMask = maskedPAN
		})
		if rbErr != nil {
			return nil, apperror.InternalError(fmt.Errorf("reject authorization: %w", rbErr))
		}
		s.invalidateCheckCache(ctx, rejected)
		declineCode := ""
		if result != nil {
			declineCode = result.DeclineCode
		}
		_ = s.recordTransaction(ctx, payment.ID, domain.TransactionTypeAuthorize, domain.TransactionStatusDeclined, payment.Amount, "", declineCode)
		return rejected, nil
	}

	now := s.clock.Now()
	_, authorized, err := s.paymentRepo.UpdateStatus(ctx, claimed.ID, claimed.Version, func(p *domain.Payment) {
		p.Status = domain.StatusAuthorized
		p.CardMask = maskedPAN
		p.AuthorizedAt = &now
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("finalize authorization: %w", err))
	}
	s.invalidateCheckCache(ctx, authorized)
	if err := s.recordAuthorizeTransaction(ctx, payment.ID, payment.Amount, result.AuthCode, result.RRN); err != nil {
		s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Msg("persist authorize transaction failed")
	}

	s.auditSvc.Log(ctx, domain.AuditLogEntry{
		Actor: payment.TeamSlug, Action: domain.AuditActionAuthorize, PaymentID: &payment.PaymentID,
		TeamSlug: &payment.TeamSlug, Outcome: domain.AuditOutcomeSuccess,
	})

	return authorized, nil
}

func (s *PaymentLifecycleEngine) recordAuthorizeTransaction(ctx context.Context, paymentID uuid.UUID, amount int64, authCode, rrn string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn := &domain.Transaction{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Type:      domain.TransactionTypeAuthorize,
		Status:    domain.TransactionStatusApproved,
		AuthCode:  authCode,
		RRN:       rrn,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}
