package handler

import (
	"secure-payment-gateway/internal/adapter/http/dto"
	"secure-payment-gateway/internal/adapter/http/middleware"
	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"
	"secure-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DashboardHandler handles the self-service transaction listing endpoint (§15).
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// ListTransactions handles GET /api/v1/dashboard/transactions. An optional
// ?paymentId= narrows the listing to a single payment's transaction history.
func (h *DashboardHandler) ListTransactions(c *gin.Context) {
	teamIDVal, ok := c.Get(middleware.CtxTeamID)
	if !ok {
		response.Error(c, apperror.ErrRegisterAuth("missing session"))
		return
	}
	teamID, ok := teamIDVal.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.InternalError(nil))
		return
	}

	var paymentID *uuid.UUID
	if pidStr := c.Query("paymentId"); pidStr != "" {
		pid, err := uuid.Parse(pidStr)
		if err != nil {
			response.Error(c, apperror.Validation("paymentId must be a UUID"))
			return
		}
		paymentID = &pid
	}

	txns, err := h.reportingSvc.ListTransactions(c.Request.Context(), teamID, paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}
	response.OK(c, items)
}

func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:           tx.ID.String(),
		PaymentID:    tx.PaymentID.String(),
		Type:         string(tx.Type),
		Status:       string(tx.Status),
		Amount:       tx.Amount,
		BankRef:      tx.BankRef,
		AuthCode:     tx.AuthCode,
		ResponseCode: tx.ResponseCode,
		CreatedAt:    tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
