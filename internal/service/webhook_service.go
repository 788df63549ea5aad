package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals defines the retry intervals for notification delivery.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Webhook event types.
const (
	EventPaymentUpdate = "PAYMENT_STATUS_UPDATE"
)

// WebhookPayload is the JSON structure posted to a team's NotificationURL.
type WebhookPayload struct {
	EventType string             `json:"event_type"`
	Data      WebhookPayloadData `json:"data"`
	Signature string             `json:"signature"`
}

// WebhookPayloadData holds the payment details delivered in the webhook.
type WebhookPayloadData struct {
	TeamSlug  string `json:"team_slug"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Timestamp int64  `json:"timestamp"`
}

// webhookService implements ports.WebhookService.
type webhookService struct {
	teamRepo    ports.TeamRepository
	webhookRepo ports.WebhookRepository // nil = persistence disabled
	encSvc      ports.EncryptionService
	httpClient  HTTPClient
	log         zerolog.Logger
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(
	teamRepo ports.TeamRepository,
	encSvc ports.EncryptionService,
	httpClient HTTPClient,
	log zerolog.Logger,
	webhookRepo ...ports.WebhookRepository,
) ports.WebhookService {
	var repo ports.WebhookRepository
	if len(webhookRepo) > 0 {
		repo = webhookRepo[0]
	}
	return &webhookService{
		teamRepo:    teamRepo,
		webhookRepo: repo,
		encSvc:      encSvc,
		httpClient:  httpClient,
		log:         log,
	}
}

// EnqueueWebhook notifies the owning team of a payment status change
// asynchronously, with retries. A no-op when the team has no
// NotificationURL configured or has not opted into Features.Webhooks.
func (s *webhookService) EnqueueWebhook(ctx context.Context, payment *domain.Payment) error {
	team, err := s.teamRepo.GetByID(ctx, payment.TeamID)
	if err != nil {
		s.log.Error().Err(err).Str("team_id", payment.TeamID.String()).Msg("webhook: failed to fetch team")
		return err
	}
	if team == nil || !team.Features.Webhooks || team.URLs.NotificationURL == "" {
		s.log.Debug().Str("team_id", payment.TeamID.String()).Msg("webhook: no notification URL configured, skipping")
		return nil
	}

	data := WebhookPayloadData{
		TeamSlug:  team.Slug,
		OrderID:   payment.OrderID,
		PaymentID: payment.PaymentID,
		Status:    string(payment.Status),
		Amount:    payment.Amount,
		Currency:  string(payment.Currency),
		Timestamp: time.Now().Unix(),
	}

	dataBytes, _ := json.Marshal(data)
	signature := s.signPayload(team, dataBytes)

	payload := WebhookPayload{
		EventType: EventPaymentUpdate,
		Data:      data,
		Signature: signature,
	}

	go s.deliverWithRetries(team.URLs.NotificationURL, payload, payment.ID, payment.TeamID)

	return nil
}

// signPayload HMAC-SHA256-signs dataBytes with the team's webhook secret.
// A team with no secret configured yields an empty signature rather than
// failing delivery outright.
func (s *webhookService) signPayload(team *domain.Team, dataBytes []byte) string {
	if team.WebhookSecretEnc == "" {
		return ""
	}
	secret, err := s.encSvc.Decrypt(team.WebhookSecretEnc)
	if err != nil {
		s.log.Error().Err(err).Str("team_id", team.ID.String()).Msg("webhook: failed to decrypt webhook secret")
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(dataBytes)
	return hex.EncodeToString(mac.Sum(nil))
}

// deliverWithRetries attempts to deliver the webhook with exponential backoff.
func (s *webhookService) deliverWithRetries(url string, payload WebhookPayload, paymentID uuid.UUID, teamID uuid.UUID) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("webhook: failed to marshal payload")
		return
	}

	logID := uuid.New()
	now := time.Now()
	deliveryLog := &domain.WebhookDeliveryLog{
		ID:        logID,
		PaymentID: paymentID,
		TeamID:    teamID,
		URL:       url,
		Payload:   string(payloadBytes),
		Attempt:   0,
		Status:    domain.WebhookStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.webhookRepo != nil {
		if err := s.webhookRepo.Create(context.Background(), deliveryLog); err != nil {
			s.log.Warn().Err(err).Str("payment_id", paymentID.String()).Msg("webhook: failed to persist initial log")
		}
	}

	for attempt := 0; attempt <= len(webhookRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(webhookRetryIntervals[attempt-1])
		}

		deliveryLog.Attempt = attempt + 1
		deliveryLog.UpdatedAt = time.Now()

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payloadBytes))
		if err != nil {
			errMsg := err.Error()
			deliveryLog.LastError = &errMsg
			s.persistLog(deliveryLog)
			s.log.Error().Err(err).Str("payment_id", paymentID.String()).Int("attempt", attempt+1).Msg("webhook: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			errMsg := err.Error()
			deliveryLog.LastError = &errMsg
			if attempt < len(webhookRetryIntervals) {
				nextRetry := time.Now().Add(webhookRetryIntervals[attempt])
				deliveryLog.NextRetryAt = &nextRetry
			}
			s.persistLog(deliveryLog)
			s.log.Warn().Err(err).Str("payment_id", paymentID.String()).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		httpStatus := resp.StatusCode
		deliveryLog.HTTPStatus = &httpStatus

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			deliveryLog.Status = domain.WebhookStatusDelivered
			deliveryLog.LastError = nil
			deliveryLog.NextRetryAt = nil
			s.persistLog(deliveryLog)
			s.log.Info().Str("payment_id", paymentID.String()).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered successfully")
			return
		}

		errMsg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		deliveryLog.LastError = &errMsg
		if attempt < len(webhookRetryIntervals) {
			nextRetry := time.Now().Add(webhookRetryIntervals[attempt])
			deliveryLog.NextRetryAt = &nextRetry
		}
		s.persistLog(deliveryLog)
		s.log.Warn().Str("payment_id", paymentID.String()).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	deliveryLog.Status = domain.WebhookStatusFailed
	deliveryLog.NextRetryAt = nil
	s.persistLog(deliveryLog)
	s.log.Error().Str("payment_id", paymentID.String()).Msg("webhook: all retry attempts exhausted")
}

func (s *webhookService) persistLog(log *domain.WebhookDeliveryLog) {
	if s.webhookRepo == nil {
		return
	}
	if err := s.webhookRepo.Update(context.Background(), log); err != nil {
		s.log.Warn().Err(err).Str("log_id", log.ID.String()).Msg("webhook: failed to persist delivery log")
	}
}
