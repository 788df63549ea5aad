package service

import (
	"context"
	"fmt"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// TeamServiceImpl implements ports.TeamService: self-service registration
// and login for the dashboard/admin surface (§15 supplemented feature,
// outside the core HMAC-authenticated payment API).
type TeamServiceImpl struct {
	teamRepo         ports.TeamRepository
	hashSvc          ports.HashService
	tokenSvc         ports.TokenService
	encSvc           ports.EncryptionService
	clock            ports.Clock
	lockoutThreshold int
	lockoutDuration  time.Duration
}

// NewTeamService creates a new TeamServiceImpl.
func NewTeamService(
	teamRepo ports.TeamRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	encSvc ports.EncryptionService,
	clock ports.Clock,
	lockoutThreshold int,
	lockoutDuration time.Duration,
) *TeamServiceImpl {
	return &TeamServiceImpl{
		teamRepo:         teamRepo,
		hashSvc:          hashSvc,
		tokenSvc:         tokenSvc,
		encSvc:           encSvc,
		clock:            clock,
		lockoutThreshold: lockoutThreshold,
		lockoutDuration:  lockoutDuration,
	}
}

// Register creates a new team account.
func (s *TeamServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	existing, err := s.teamRepo.GetBySlug(ctx, req.Slug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check slug: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrRegisterConflict("slug already registered")
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	apiSecret, err := generateKey("sk_", 32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api secret: %w", err))
	}
	apiSecretEnc, err := s.encSvc.Encrypt(apiSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt api secret: %w", err))
	}

	now := s.clock.Now()
	team := &domain.Team{
		ID:                  uuid.New(),
		Slug:                req.Slug,
		PasswordHash:        passwordHash,
		APISecretEnc:        apiSecretEnc,
		Name:                req.Name,
		ContactEmail:        req.ContactEmail,
		URLs:                req.URLs,
		SupportedCurrencies: req.SupportedCurrencies,
		Limits:              req.Limits,
		Features:            req.Features,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create team: %w", err))
	}

	return &ports.RegisterResponse{TeamID: team.ID, Slug: team.Slug, APISecret: apiSecret}, nil
}

// Login validates credentials and returns a JWT session token. Failed
// attempts accumulate on the team row; reaching lockoutThreshold locks the
// team out for lockoutDuration regardless of subsequent correct passwords.
func (s *TeamServiceImpl) Login(ctx context.Context, slug, password string) (string, time.Time, error) {
	team, err := s.teamRepo.GetBySlug(ctx, slug)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find team: %w", err))
	}
	if team == nil {
		return "", time.Time{}, apperror.ErrRegisterAuth("invalid credentials")
	}

	now := s.clock.Now()
	if team.IsLocked(now) {
		return "", time.Time{}, apperror.ErrRegisterForbidden("team is locked out, try again later")
	}

	valid, err := s.hashSvc.Verify(password, team.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		var lockUntil *time.Time
		if team.FailedAuthAttempts+1 >= s.lockoutThreshold {
			until := now.Add(s.lockoutDuration)
			lockUntil = &until
		}
		if _, incErr := s.teamRepo.IncrementFailedAttempts(ctx, team.ID, lockUntil); incErr != nil {
			return "", time.Time{}, apperror.InternalError(fmt.Errorf("increment failed attempts: %w", incErr))
		}
		return "", time.Time{}, apperror.ErrRegisterAuth("invalid credentials")
	}

	if !team.IsActive {
		return "", time.Time{}, apperror.ErrRegisterForbidden("team is not active")
	}

	if err := s.teamRepo.ResetFailedAttempts(ctx, team.ID); err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("reset failed attempts: %w", err))
	}

	token, expiry, err := s.tokenSvc.Generate(team.ID, team.Slug)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

var _ ports.TeamService = (*TeamServiceImpl)(nil)
