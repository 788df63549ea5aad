package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus is the delivery state of a webhook notification.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "PENDING"
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// WebhookDeliveryLog records each attempt to notify a team's
// NotificationURL of a payment status change (§15 supplemented feature;
// Team.Features.Webhooks gates whether delivery is attempted at all).
type WebhookDeliveryLog struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	TeamID      uuid.UUID
	URL         string
	Payload     string // JSON string
	HTTPStatus  *int
	Attempt     int
	Status      WebhookStatus
	NextRetryAt *time.Time
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
