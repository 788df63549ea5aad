package service

import (
	"context"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type auditService struct {
	repo  ports.AuditRepository
	clock ports.Clock
	log   zerolog.Logger
}

// NewAuditService creates a new audit service. If repo is nil, audit
// entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, clock ports.Clock, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, clock: clock, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget): audit
// failures must never block or fail the operation they describe.
func (s *auditService) Log(ctx context.Context, entry domain.AuditLogEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.clock.Now()
	}

	go func() {
		event := s.log.Info()
		if entry.Outcome == domain.AuditOutcomeFailure {
			event = s.log.Warn()
		}
		event = event.Str("actor", entry.Actor).Str("action", string(entry.Action)).Str("outcome", string(entry.Outcome))
		if entry.PaymentID != nil {
			event = event.Str("payment_id", *entry.PaymentID)
		}
		if entry.TeamSlug != nil {
			event = event.Str("team_slug", *entry.TeamSlug)
		}
		event.Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), &entry); err != nil {
				s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log entry")
			}
		}
	}()
}
