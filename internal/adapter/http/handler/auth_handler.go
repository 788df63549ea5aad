package handler

import (
	"net/http"

	"secure-payment-gateway/internal/adapter/http/dto"
	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"
	"secure-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles team registration/login endpoints.
type AuthHandler struct {
	teamSvc ports.TeamService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(teamSvc ports.TeamService) *AuthHandler {
	return &AuthHandler{teamSvc: teamSvc}
}

// Register handles POST /api/v1/teamregistration/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrRegisterValidation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.teamSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Slug:                req.Slug,
		Password:            req.Password,
		Name:                req.Name,
		ContactEmail:        req.ContactEmail,
		SupportedCurrencies: []domain.Currency{domain.CurrencyRUB, domain.CurrencyUSD, domain.CurrencyEUR},
		Limits: domain.TeamLimits{
			MinAmount:         100,
			MaxAmount:         50_000_00,
			DailyAmount:       500_000_00,
			DailyTransactions: 1000,
			MonthlyAmount:     5_000_000_00,
		},
		Features: domain.TeamFeatures{
			Refunds:        true,
			PartialRefunds: true,
			Reversals:      true,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisterResponse{
		TeamID:    result.TeamID.String(),
		Slug:      result.Slug,
		APISecret: result.APISecret,
	})
}

// Login handles POST /api/v1/teamlogin/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrRegisterValidation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	token, expiry, err := h.teamSvc.Login(c.Request.Context(), req.Slug, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// HealthCheck handles GET /health — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
