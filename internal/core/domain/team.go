package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency is one of the gateway's supported settlement currencies.
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyKZT Currency = "KZT"
	CurrencyBYN Currency = "BYN"
)

// SupportedCurrencies is the full set a team may opt into.
var SupportedCurrencies = map[Currency]bool{
	CurrencyRUB: true,
	CurrencyUSD: true,
	CurrencyEUR: true,
	CurrencyKZT: true,
	CurrencyBYN: true,
}

// TeamLimits bounds the payments a team may create.
type TeamLimits struct {
	MinAmount          int64 // per-payment, minor units; 0 means unset
	MaxAmount          int64 // per-payment, minor units; 0 means unset
	DailyAmount        int64 // 0 means unset
	DailyTransactions  int
	MonthlyAmount      int64 // 0 means unset
}

// TeamFeatures are the opt-in capabilities a team carries.
type TeamFeatures struct {
	ThreeDS         bool
	Tokenization    bool
	Refunds         bool
	PartialRefunds  bool
	Reversals       bool
	Webhooks        bool
	WebhookRetries  bool
	WebhookTimeout  time.Duration
}

// TeamURLs are the redirect/notification targets a team configures.
type TeamURLs struct {
	SuccessURL      string
	FailURL         string
	NotificationURL string
	CancelURL       string
}

// Team is a registered merchant. Slug is the unique, URL-safe handle used
// in place of a raw primary key in the public API.
type Team struct {
	ID                 uuid.UUID
	Slug               string
	PasswordHash       string // Argon2id encoded hash, never exposed
	APISecretEnc       string // AES-256-GCM ciphertext of the HMAC signing secret (§4.1's "Password"); distinct from the login password, shown once at registration
	Name               string
	ContactEmail       string
	WebhookSecretEnc   string // AES-256-GCM ciphertext, decrypted on demand for HMAC-signing webhook payloads
	URLs               TeamURLs
	SupportedCurrencies []Currency
	Limits             TeamLimits
	Features           TeamFeatures
	FailedAuthAttempts int
	LockedUntil        *time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SupportsCurrency reports whether cur is one the team accepted at registration.
func (t *Team) SupportsCurrency(cur Currency) bool {
	for _, c := range t.SupportedCurrencies {
		if c == cur {
			return true
		}
	}
	return false
}

// IsLocked reports whether the team's failed-auth lockout is currently in effect.
func (t *Team) IsLocked(now time.Time) bool {
	return t.LockedUntil != nil && now.Before(*t.LockedUntil)
}

// WithinPerPaymentLimits reports whether amount respects the team's configured
// min/max, when those are set (zero means "no team-specific bound").
func (t *Team) WithinPerPaymentLimits(amount int64) bool {
	if t.Limits.MinAmount > 0 && amount < t.Limits.MinAmount {
		return false
	}
	if t.Limits.MaxAmount > 0 && amount > t.Limits.MaxAmount {
		return false
	}
	return true
}
