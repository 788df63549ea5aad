package handler

import (
	"net/http"
	"time"

	"secure-payment-gateway/internal/adapter/http/dto"
	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"
	"secure-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the core payment lifecycle endpoints (C8/C9).
type PaymentHandler struct {
	lifecycle ports.LifecycleEngine
	statusSvc ports.StatusQueryService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(lifecycle ports.LifecycleEngine, statusSvc ports.StatusQueryService) *PaymentHandler {
	return &PaymentHandler{lifecycle: lifecycle, statusSvc: statusSvc}
}

// Init handles POST /api/v1/paymentinit/init (§4.4.1).
func (h *PaymentHandler) Init(c *gin.Context) {
	var req dto.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInitValidation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	items := make([]ports.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ports.LineItem{Name: it.Name, Amount: it.Amount, Quantity: it.Quantity})
	}

	payment, err := h.lifecycle.Init(c.Request.Context(), ports.InitRequest{
		TeamSlug:        req.TeamSlug,
		Amount:          req.Amount,
		Currency:        domain.Currency(req.Currency),
		OrderID:         req.OrderId,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		NotificationURL: req.NotificationURL,
		PaymentExpiry:   time.Duration(req.PaymentExpiry) * time.Minute,
		Email:           req.Email,
		Language:        req.Language,
		Description:     req.Description,
		Items:           items,
		Data:            req.Data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentResponse(payment, true))
}

// RenderForm handles GET /api/v1/paymentform/render/:pid (§4.4.2).
func (h *PaymentHandler) RenderForm(c *gin.Context) {
	paymentID := c.Param("pid")
	payment, err := h.lifecycle.RenderForm(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.HTML(http.StatusOK, "payment_form.html", gin.H{
		"paymentId": payment.PaymentID,
		"amount":    payment.Amount,
		"currency":  payment.Currency,
		"orderId":   payment.OrderID,
	})
}

// SubmitForm handles POST /api/v1/paymentform/submit (§4.4.2).
func (h *PaymentHandler) SubmitForm(c *gin.Context) {
	paymentID := c.PostForm("payment_id")
	if paymentID == "" {
		paymentID = c.Param("pid")
	}

	var req dto.FormSubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, apperror.ErrInitValidation(err.Error()))
		return
	}

	payment, err := h.lifecycle.SubmitForm(c.Request.Context(), ports.FormSubmitRequest{
		PaymentID: paymentID,
		Card: ports.CardInput{
			PAN:        req.PAN,
			ExpiryMM:   req.ExpiryMM,
			ExpiryYY:   req.ExpiryYY,
			CVV:        req.CVV,
			Cardholder: req.Cardholder,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPaymentResponse(payment, false))
}

// Result handles GET /api/v1/paymentform/result/:pid — the redirect target
// the cardholder's browser lands on after form submission.
func (h *PaymentHandler) Result(c *gin.Context) {
	paymentID := c.Param("pid")
	payment, err := h.lifecycle.RenderForm(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPaymentResponse(payment, false))
}

// Confirm handles POST /api/v1/paymentconfirm/confirm (§4.4.3).
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrConfirmValidation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payment, partialIgnored, err := h.lifecycle.Confirm(c.Request.Context(), ports.ConfirmRequest{
		TeamSlug:    req.TeamSlug,
		PaymentID:   req.PaymentId,
		Amount:      req.Amount,
		Description: req.Description,
		Data:        req.Data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := toPaymentResponse(payment, false)
	if partialIgnored {
		resp.Message = "partial confirm amount ignored; full amount captured"
	}
	response.OK(c, resp)
}

// Cancel handles POST /api/v1/paymentcancel/cancel (§4.4.4).
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrCancelInvalidState(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payment, partialIgnored, err := h.lifecycle.Cancel(c.Request.Context(), ports.CancelRequest{
		TeamSlug:  req.TeamSlug,
		PaymentID: req.PaymentId,
		Amount:    req.Amount,
		Data:      req.Data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := toPaymentResponse(payment, false)
	if partialIgnored {
		resp.Message = "partial cancel amount not supported; full amount reversed"
	}
	response.OK(c, resp)
}

// Check handles POST /api/v1/paymentcheck/check and GET /api/v1/paymentcheck/status (§4.4.5).
func (h *PaymentHandler) Check(c *gin.Context) {
	var req dto.CheckRequest
	bindErr := c.ShouldBindJSON(&req)
	if bindErr != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			response.Error(c, apperror.Validation("PaymentId or OrderId is required"))
			return
		}
	}
	dto.SanitizeStruct(&req)

	payments, err := h.statusSvc.Check(c.Request.Context(), ports.CheckRequest{
		TeamSlug:         req.TeamSlug,
		PaymentID:        req.PaymentId,
		OrderID:          req.OrderId,
		WithCardDetails:  req.WithCardDetails,
		WithTransactions: req.WithTransactions,
		WithCustomer:     req.WithCustomer,
		WithReceipt:      req.WithReceipt,
		Language:         req.Language,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	results := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		results = append(results, toPaymentResponse(&payments[i], false))
	}
	response.OK(c, results)
}

func toPaymentResponse(p *domain.Payment, includePaymentURL bool) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		Success:     true,
		TeamSlug:    p.TeamSlug,
		OrderId:     p.OrderID,
		PaymentId:   p.PaymentID,
		Status:      string(p.Status),
		Amount:      p.Amount,
		Currency:    string(p.Currency),
		Description: p.Description,
		CardMask:    p.CardMask,
	}
	if includePaymentURL {
		resp.PaymentURL = "/api/v1/paymentform/render/" + p.PaymentID
	}
	return resp
}
