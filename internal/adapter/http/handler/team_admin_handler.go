package handler

import (
	"secure-payment-gateway/internal/adapter/http/dto"
	"secure-payment-gateway/internal/adapter/http/middleware"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"
	"secure-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TeamAdminHandler handles the JWT-authenticated team self-service surface
// (§15): profile view, notification URL updates, webhook secret rotation.
type TeamAdminHandler struct {
	adminSvc ports.TeamAdminService
}

// NewTeamAdminHandler creates a new team admin handler.
func NewTeamAdminHandler(adminSvc ports.TeamAdminService) *TeamAdminHandler {
	return &TeamAdminHandler{adminSvc: adminSvc}
}

func teamIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(middleware.CtxTeamID)
	if !ok {
		return uuid.UUID{}, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}

// GetProfile returns the authenticated team's self-service profile.
func (h *TeamAdminHandler) GetProfile(c *gin.Context) {
	teamID, ok := teamIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrRegisterAuth("missing session"))
		return
	}

	profile, err := h.adminSvc.GetProfile(c.Request.Context(), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TeamProfileResponse{
		ID:              profile.ID.String(),
		Slug:            profile.Slug,
		Name:            profile.Name,
		ContactEmail:    profile.ContactEmail,
		NotificationURL: profile.URLs.NotificationURL,
		IsActive:        profile.IsActive,
		CreatedAt:       profile.CreatedAt,
	})
}

// UpdateNotificationURL updates the team's webhook notification URL.
func (h *TeamAdminHandler) UpdateNotificationURL(c *gin.Context) {
	teamID, ok := teamIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrRegisterAuth("missing session"))
		return
	}

	var req dto.UpdateNotificationURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.adminSvc.UpdateNotificationURL(c.Request.Context(), teamID, req.NotificationURL); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "notification URL updated"})
}

// RotateWebhookSecret generates a new webhook signing secret for the team.
func (h *TeamAdminHandler) RotateWebhookSecret(c *gin.Context) {
	teamID, ok := teamIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrRegisterAuth("missing session"))
		return
	}

	result, err := h.adminSvc.RotateWebhookSecret(c.Request.Context(), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RotateWebhookSecretResponse{WebhookSecret: result.WebhookSecret})
}
