package ports

import (
	"context"
	"time"

	"secure-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// Clock abstracts time so tests can advance it deterministically (C1).
type Clock interface {
	Now() time.Time
}

// EncryptionService handles AES-256-GCM encryption/decryption, used for
// secrets at rest (team credential rotation material), never for card data.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// Operation names the per-operation field set an Authenticator token is
// built over, per §4.1.
type Operation string

const (
	OpInit    Operation = "init"
	OpConfirm Operation = "confirm"
	OpCancel  Operation = "cancel"
	OpCheck   Operation = "check"
)

// Authenticator is the HMAC-token authenticator (C5). BuildToken and
// Verify must agree byte-exactly on the canonical construction in §4.1:
// sorted ASCII keys of the operation's root scalar fields plus Password,
// concatenated with no separators, SHA-256, lowercase hex.
type Authenticator interface {
	BuildToken(op Operation, fields map[string]string, password string) string
	Verify(op Operation, fields map[string]string, password string, token string) bool
}

// TokenClaims holds parsed claims from an admin/self-service session token.
type TokenClaims struct {
	TeamID uuid.UUID
	Slug   string
}

// TokenService issues/validates the self-service session JWT used by the
// non-core dashboard/team-admin surface (§15).
type TokenService interface {
	Generate(teamID uuid.UUID, slug string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// IdempotencyCache is the Redis-layer idempotency check (fast path, C7).
// Keys are already scope-qualified by the caller via domain.BuildCheckKey
// et al.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes every check-scope entry whose key embeds teamID
	// and either paymentID or orderID, per §4.2's invalidation rule.
	Invalidate(ctx context.Context, teamID uuid.UUID, paymentID, orderID string) error
}

// ReplayStore binds an authenticated call to a server-assigned requestId
// so identical signed payloads cannot be replayed within the window (§4.1).
type ReplayStore interface {
	// CheckAndSet returns true if requestID is new (the call may proceed),
	// false if it was already recorded within ttl.
	CheckAndSet(ctx context.Context, teamID uuid.UUID, requestID string, ttl time.Duration) (bool, error)
}

// RateLimiter enforces a fixed-window request budget per key (C11).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, resetAt time.Time, err error)
}

// MetricsSink is the single injected interface behind which counters,
// histograms, and gauges live, so tests can assert counts (§9).
type MetricsSink interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// --- Bank adapter (C10) ---

// CardInput is the raw card data collected on the hosted form. Never
// logged, never persisted beyond the derived masked PAN (§4.4.2).
type CardInput struct {
	PAN        string
	ExpiryMM   string
	ExpiryYY   string
	CVV        string
	Cardholder string
}

// AuthorizeResult is the bank adapter's outcome for an authorize call.
type AuthorizeResult struct {
	Approved bool
	AuthCode string
	RRN      string
	MaskedPAN string
	DeclineCode    string
	DeclineMessage string
}

// CaptureResult is the bank adapter's outcome for a capture call.
type CaptureResult struct {
	Approved bool
	BankRef  string
}

// RefundResult is the bank adapter's outcome for a refund call.
type RefundResult struct {
	Approved bool
	RefundRef string
}

// BankAdapter is the abstract capture/release/refund contract (§4.5). The
// engine never auto-retries a bank error outside a persisted intermediate
// state; timeout/retry policy is entirely the adapter's concern.
type BankAdapter interface {
	Authorize(ctx context.Context, card CardInput, amount int64, currency domain.Currency) (*AuthorizeResult, error)
	Capture(ctx context.Context, authCode string, amount int64) (*CaptureResult, error)
	Release(ctx context.Context, authCode string) error
	Refund(ctx context.Context, bankRef string, amount int64) (*RefundResult, error)
}

// --- Lifecycle engine (C8) and status query (C9) ---

// InitRequest holds validated input for the Init operation (§4.4.1).
type InitRequest struct {
	TeamSlug        string
	Amount          int64
	Currency        domain.Currency
	OrderID         string
	SuccessURL      string
	FailURL         string
	NotificationURL string
	PaymentExpiry   time.Duration
	Email           string
	Language        string
	Description     string
	Items           []LineItem
	Data            map[string]string
}

// LineItem is one entry of an Init request's optional itemized cart.
type LineItem struct {
	Name     string
	Amount   int64
	Quantity int
}

// FormSubmitRequest holds validated input for the hosted-form POST (§4.4.2).
type FormSubmitRequest struct {
	PaymentID string
	Card      CardInput
}

// ConfirmRequest holds validated input for the Confirm operation (§4.4.3).
type ConfirmRequest struct {
	TeamSlug    string
	PaymentID   string
	Amount      *int64
	Description string
	Data        map[string]string
}

// CancelRequest holds validated input for the Cancel operation (§4.4.4).
type CancelRequest struct {
	TeamSlug  string
	PaymentID string
	Amount    *int64 // partial amounts are not supported; see Warning in response
	Data      map[string]string
}

// CheckRequest holds validated input for the Check operation (§4.4.5).
type CheckRequest struct {
	TeamSlug          string
	PaymentID         string
	OrderID           string
	WithCardDetails   bool
	WithTransactions  bool
	WithCustomer      bool
	WithReceipt       bool
	Language          string
}

// LifecycleEngine orchestrates init/confirm/cancel and the hosted-form
// transitions over the FSM and the Payment aggregate (C8).
type LifecycleEngine interface {
	Init(ctx context.Context, req InitRequest) (*domain.Payment, error)
	RenderForm(ctx context.Context, paymentID string) (*domain.Payment, error)
	SubmitForm(ctx context.Context, req FormSubmitRequest) (*domain.Payment, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*domain.Payment, bool /*warning: partial ignored*/, error)
	Cancel(ctx context.Context, req CancelRequest) (*domain.Payment, bool, error)
}

// StatusQueryService resolves Check requests (C9), cache-first.
type StatusQueryService interface {
	Check(ctx context.Context, req CheckRequest) ([]domain.Payment, error)
}

// ExpirySweeper periodically transitions expired non-terminal payments
// (§4.4.6).
type ExpirySweeper interface {
	SweepOnce(ctx context.Context) (swept int, err error)
}

// --- Team / credential surface (C4) ---

// TeamService defines team registration/self-service business logic.
type TeamService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, slug, password string) (string, time.Time, error)
}

// RegisterRequest holds input for team registration.
type RegisterRequest struct {
	Slug                string
	Password            string
	Name                string
	ContactEmail        string
	URLs                domain.TeamURLs
	SupportedCurrencies []domain.Currency
	Limits              domain.TeamLimits
	Features            domain.TeamFeatures
}

// RegisterResponse holds the registration result. APISecret is the
// plaintext HMAC signing secret (§4.1's "Password"), shown to the caller
// exactly once; only its encrypted form is retained server-side.
type RegisterResponse struct {
	TeamID    uuid.UUID
	Slug      string
	APISecret string
}

// ReportingService defines dashboard/reporting business logic (§15).
type ReportingService interface {
	ListTransactions(ctx context.Context, teamID uuid.UUID, paymentID *uuid.UUID) ([]domain.Transaction, error)
}

// WebhookService defines async notification delivery on status changes (§15).
type WebhookService interface {
	EnqueueWebhook(ctx context.Context, payment *domain.Payment) error
}

// AuditService persists/publishes audit entries (C12).
type AuditService interface {
	Log(ctx context.Context, entry domain.AuditLogEntry)
}

// TeamProfile is the self-service-visible subset of a Team.
type TeamProfile struct {
	ID           uuid.UUID
	Slug         string
	Name         string
	ContactEmail string
	URLs         domain.TeamURLs
	IsActive     bool
	CreatedAt    string
}

// RotateWebhookSecretResponse carries the new plaintext secret, shown once.
type RotateWebhookSecretResponse struct {
	WebhookSecret string
}

// TeamAdminService defines minimal team self-service administration (§15):
// profile view, notification URL update, webhook secret rotation. Shares
// the HMAC authenticator's team-scoping with the core payment surface but
// is reachable only via the JWT-authenticated dashboard surface.
type TeamAdminService interface {
	GetProfile(ctx context.Context, teamID uuid.UUID) (*TeamProfile, error)
	UpdateNotificationURL(ctx context.Context, teamID uuid.UUID, notificationURL string) error
	RotateWebhookSecret(ctx context.Context, teamID uuid.UUID) (*RotateWebhookSecretResponse, error)
}
