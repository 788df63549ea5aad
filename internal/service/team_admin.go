package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
)

type teamAdminService struct {
	teamRepo ports.TeamRepository
	encSvc   ports.EncryptionService
	clock    ports.Clock
}

// NewTeamAdminService creates a new team self-service administration
// service (§15): profile view, notification URL update, webhook secret
// rotation.
func NewTeamAdminService(teamRepo ports.TeamRepository, encSvc ports.EncryptionService, clock ports.Clock) ports.TeamAdminService {
	return &teamAdminService{teamRepo: teamRepo, encSvc: encSvc, clock: clock}
}

func (s *teamAdminService) GetProfile(ctx context.Context, teamID uuid.UUID) (*ports.TeamProfile, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if team == nil {
		return nil, apperror.ErrConfirmNotFound()
	}

	return &ports.TeamProfile{
		ID:           team.ID,
		Slug:         team.Slug,
		Name:         team.Name,
		ContactEmail: team.ContactEmail,
		URLs:         team.URLs,
		IsActive:     team.IsActive,
		CreatedAt:    team.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *teamAdminService) UpdateNotificationURL(ctx context.Context, teamID uuid.UUID, notificationURL string) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return apperror.InternalError(err)
	}
	if team == nil {
		return apperror.ErrConfirmNotFound()
	}

	team.URLs.NotificationURL = notificationURL
	team.UpdatedAt = s.clock.Now()

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

func (s *teamAdminService) RotateWebhookSecret(ctx context.Context, teamID uuid.UUID) (*ports.RotateWebhookSecretResponse, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if team == nil {
		return nil, apperror.ErrConfirmNotFound()
	}

	newSecret, err := generateKey("whsec_", 32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
	}

	encSecret, err := s.encSvc.Encrypt(newSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt webhook secret: %w", err))
	}

	team.WebhookSecretEnc = encSecret
	team.UpdatedAt = s.clock.Now()

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, apperror.InternalError(err)
	}

	return &ports.RotateWebhookSecretResponse{WebhookSecret: newSecret}, nil
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}

var _ ports.TeamAdminService = (*teamAdminService)(nil)
