package dto

// LineItem is one entry of an Init request's optional itemized cart
// (§4.4.1).
type LineItem struct {
	Name     string `json:"Name" binding:"required"`
	Amount   int64  `json:"Amount" binding:"required,gt=0"`
	Quantity int    `json:"Quantity" binding:"required,gt=0"`
}

// InitRequest is the request body for POST /paymentinit/init. TeamSlug and
// Token are part of the HMAC-signed envelope rather than the validated
// business payload, so the auth middleware reads them off the raw body
// before binding continues.
type InitRequest struct {
	TeamSlug        string            `json:"TeamSlug" binding:"required,safe_id"`
	Token           string            `json:"Token" binding:"required"`
	Amount          int64             `json:"Amount" binding:"required,gt=0"`
	Currency        string            `json:"Currency" binding:"required,len=3"`
	OrderId         string            `json:"OrderId" binding:"required,max=36"`
	Description     string            `json:"Description,omitempty" binding:"max=250"`
	SuccessURL      string            `json:"SuccessURL,omitempty" binding:"omitempty,safe_url"`
	FailURL         string            `json:"FailURL,omitempty" binding:"omitempty,safe_url"`
	NotificationURL string            `json:"NotificationURL,omitempty" binding:"omitempty,safe_url"`
	PaymentExpiry   int64             `json:"PaymentExpiry,omitempty"` // minutes
	Email           string            `json:"Email,omitempty" binding:"omitempty,email"`
	Language        string            `json:"Language,omitempty" binding:"omitempty,len=2"`
	Items           []LineItem        `json:"Items,omitempty" binding:"omitempty,dive"`
	Data            map[string]string `json:"Data,omitempty"`
}

// PaymentResponse is the shared response shape for init/confirm/cancel/check
// (§4.4), matching the literal field casing of the scenarios in §8.
type PaymentResponse struct {
	Success     bool   `json:"Success"`
	TeamSlug    string `json:"TeamSlug"`
	OrderId     string `json:"OrderId,omitempty"`
	PaymentId   string `json:"PaymentId"`
	Status      string `json:"Status"`
	Amount      int64  `json:"Amount"`
	Currency    string `json:"Currency,omitempty"`
	Description string `json:"Description,omitempty"`
	PaymentURL  string `json:"PaymentURL,omitempty"`
	CardMask    string `json:"CardMask,omitempty"`
	ErrorCode   string `json:"ErrorCode,omitempty"`
	Message     string `json:"Message,omitempty"`
}

// ConfirmRequest is the request body for POST /paymentconfirm/confirm.
type ConfirmRequest struct {
	TeamSlug    string            `json:"TeamSlug" binding:"required,safe_id"`
	Token       string            `json:"Token" binding:"required"`
	PaymentId   string            `json:"PaymentId" binding:"required"`
	Amount      *int64            `json:"Amount,omitempty" binding:"omitempty,gt=0"`
	Description string            `json:"Description,omitempty"`
	Data        map[string]string `json:"Data,omitempty"`
}

// CancelRequest is the request body for POST /paymentcancel/cancel.
type CancelRequest struct {
	TeamSlug  string            `json:"TeamSlug" binding:"required,safe_id"`
	Token     string            `json:"Token" binding:"required"`
	PaymentId string            `json:"PaymentId" binding:"required"`
	Amount    *int64            `json:"Amount,omitempty" binding:"omitempty,gt=0"`
	Data      map[string]string `json:"Data,omitempty"`
}

// CheckRequest is the request body for POST /paymentcheck/check (and the
// equivalent query parameters for GET /paymentcheck/status).
type CheckRequest struct {
	TeamSlug         string `json:"TeamSlug" form:"TeamSlug" binding:"required,safe_id"`
	Token            string `json:"Token" form:"Token" binding:"required"`
	PaymentId        string `json:"PaymentId,omitempty" form:"PaymentId"`
	OrderId          string `json:"OrderId,omitempty" form:"OrderId"`
	WithCardDetails  bool   `json:"WithCardDetails,omitempty" form:"WithCardDetails"`
	WithTransactions bool   `json:"WithTransactions,omitempty" form:"WithTransactions"`
	WithCustomer     bool   `json:"WithCustomer,omitempty" form:"WithCustomer"`
	WithReceipt      bool   `json:"WithReceipt,omitempty" form:"WithReceipt"`
	Language         string `json:"Language,omitempty" form:"Language"`
}

// FormSubmitRequest is the hosted-form POST body (§4.4.2), form-encoded
// rather than JSON since it is submitted directly by the cardholder's
// browser.
type FormSubmitRequest struct {
	PAN        string `form:"pan" binding:"required"`
	ExpiryMM   string `form:"expiry_mm" binding:"required,len=2"`
	ExpiryYY   string `form:"expiry_yy" binding:"required,len=2"`
	CVV        string `form:"cvv" binding:"required"`
	Cardholder string `form:"cardholder"`
}

// RegisterRequest is the request body for team registration.
type RegisterRequest struct {
	Slug         string `json:"slug" binding:"required,safe_id,min=3,max=50"`
	Password     string `json:"password" binding:"required,min=8,max=128"`
	Name         string `json:"name" binding:"required,max=100"`
	ContactEmail string `json:"contactEmail" binding:"required,email"`
}

// RegisterResponse is the response body for successful registration. The
// APISecret is shown exactly once and must be stored by the caller.
type RegisterResponse struct {
	TeamID    string `json:"teamId"`
	Slug      string `json:"slug"`
	APISecret string `json:"apiSecret"`
}

// LoginRequest is the request body for team self-service login.
type LoginRequest struct {
	Slug     string `json:"slug" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TeamProfileResponse is the self-service-visible subset of a team.
type TeamProfileResponse struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	ContactEmail    string `json:"contactEmail"`
	NotificationURL string `json:"notificationUrl,omitempty"`
	IsActive        bool   `json:"isActive"`
	CreatedAt       string `json:"createdAt"`
}

// UpdateNotificationURLRequest updates a team's webhook notification URL.
type UpdateNotificationURLRequest struct {
	NotificationURL string `json:"notificationUrl" binding:"required,safe_url"`
}

// RotateWebhookSecretResponse carries the new plaintext secret, shown once.
type RotateWebhookSecretResponse struct {
	WebhookSecret string `json:"webhookSecret"`
}

// TransactionResponse is the response body for a single transaction record.
type TransactionResponse struct {
	ID           string `json:"id"`
	PaymentID    string `json:"paymentId"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	BankRef      string `json:"bankRef,omitempty"`
	AuthCode     string `json:"authCode,omitempty"`
	ResponseCode string `json:"responseCode,omitempty"`
	CreatedAt    string `json:"createdAt"`
}
