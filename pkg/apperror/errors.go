// Package apperror defines the gateway's error taxonomy: a small set of
// kinds, each carrying a four-digit code family and a fixed HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the taxonomy of error conditions the lifecycle engine and HTTP
// layer distinguish. Kinds, not type names: callers branch on Kind, never
// on a Go type assertion.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuth           Kind = "auth"
	KindForbidden      Kind = "forbidden"
	KindNotFound       Kind = "not_found"
	KindInvalidState   Kind = "invalid_state"
	KindConflict       Kind = "conflict"
	KindLimitExceeded  Kind = "limit_exceeded"
	KindRuleViolation  Kind = "rule_violation"
	KindRateLimited    Kind = "rate_limited"
	KindTimeout        Kind = "timeout"
	KindAdapterFailure Kind = "adapter_failure"
	KindInternal       Kind = "internal"
)

// family is the leading digit of the four-digit error code, selected by
// the operation group the error occurred in, per spec §6/§7.
type family string

const (
	familyInitCheck family = "1" // 1xxx
	familyConfirm   family = "2" // 2xxx confirm/register
	familyCancel    family = "3" // 3xxx
	familyInternal  family = "9" // 9999
)

// AppError is a structured error that maps to an HTTP response and a
// four-digit errorCode in the gateway's JSON error envelope.
type AppError struct {
	Kind       Kind
	Code       string // four-digit code, e.g. "3409"
	Message    string
	Details    map[string]any
	HTTPStatus int
	Err        error // wrapped internal error, never exposed to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches free-form structured detail to the error envelope.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// httpStatusFor derives the terminal HTTP status from an error code's
// trailing three digits per the fixed table in spec §6 (e.g. 3409 → 409).
func httpStatusFor(code string) int {
	if code == "9999" {
		return http.StatusInternalServerError
	}
	if len(code) != 4 {
		return http.StatusBadRequest
	}
	switch code[1:] {
	case "001":
		return http.StatusUnauthorized
	case "003":
		return http.StatusForbidden
	case "004":
		return http.StatusNotFound
	case "409":
		return http.StatusConflict
	case "408":
		return http.StatusConflict
	case "022":
		return http.StatusUnprocessableEntity
	case "029":
		return http.StatusTooManyRequests
	case "008":
		return http.StatusRequestTimeout
	case "502":
		return http.StatusBadGateway
	case "100":
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func codeFor(fam family, kind Kind) string {
	switch kind {
	case KindAuth:
		return string(fam) + "001"
	case KindValidation:
		return string(fam) + "100"
	case KindForbidden:
		return string(fam) + "003"
	case KindNotFound:
		return string(fam) + "004"
	case KindInvalidState:
		return string(fam) + "409"
	case KindConflict:
		return string(fam) + "408"
	case KindLimitExceeded, KindRuleViolation:
		return string(fam) + "022"
	case KindRateLimited:
		return string(fam) + "029"
	case KindTimeout:
		return string(fam) + "008"
	case KindAdapterFailure:
		return string(fam) + "502"
	default:
		return "9999"
	}
}

// New builds an AppError for the given operation family and kind.
func newFor(fam family, kind Kind, message string) *AppError {
	code := codeFor(fam, kind)
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatusFor(code),
	}
}

// Wrap attaches an internal error for logging while keeping the sanitized
// message and code that reach the client.
func (e *AppError) wrapping(err error) *AppError {
	e.Err = err
	return e
}

// New constructs a raw AppError with an explicit code/status pair. Kept for
// call sites that already know their exact code (e.g. constant-folded from
// a table) rather than deriving it per-family.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap is New plus a wrapped internal error.
func Wrap(code, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// ---- init/check family (1xxx) ----

func ErrInitValidation(message string) *AppError  { return newFor(familyInitCheck, KindValidation, message) }
func ErrInitAuth(message string) *AppError        { return newFor(familyInitCheck, KindAuth, message) }
func ErrInitLimitExceeded() *AppError {
	return newFor(familyInitCheck, KindLimitExceeded, "amount outside configured limits")
}
func ErrInitTeamInactive() *AppError {
	return newFor(familyInitCheck, KindForbidden, "team is not active")
}
func ErrInitItemsMismatch() *AppError {
	return newFor(familyInitCheck, KindValidation, "items do not sum to amount")
}
func ErrCheckNotFound() *AppError { return newFor(familyInitCheck, KindNotFound, "payment not found") }

// ---- confirm/register family (2xxx) ----

func ErrConfirmAuth(message string) *AppError { return newFor(familyConfirm, KindAuth, message) }
func ErrConfirmValidation(message string) *AppError {
	return newFor(familyConfirm, KindValidation, message)
}
func ErrConfirmNotFound() *AppError           { return newFor(familyConfirm, KindNotFound, "payment not found") }
func ErrConfirmInvalidState(message string) *AppError {
	return newFor(familyConfirm, KindInvalidState, message)
}
func ErrConfirmConflict() *AppError {
	return newFor(familyConfirm, KindConflict, "concurrent modification, retry with refreshed state")
}
func ErrConfirmAdapterFailure(err error) *AppError {
	return newFor(familyConfirm, KindAdapterFailure, "bank adapter did not complete the capture").wrapping(err)
}
func ErrRegisterValidation(message string) *AppError {
	return newFor(familyConfirm, KindValidation, message)
}
func ErrRegisterConflict(message string) *AppError {
	return newFor(familyConfirm, KindConflict, message)
}
func ErrRegisterAuth(message string) *AppError {
	return newFor(familyConfirm, KindAuth, message)
}
func ErrRegisterForbidden(message string) *AppError {
	return newFor(familyConfirm, KindForbidden, message)
}

// ---- cancel family (3xxx) ----

func ErrCancelAuth(message string) *AppError { return newFor(familyCancel, KindAuth, message) }
func ErrCancelNotFound() *AppError           { return newFor(familyCancel, KindNotFound, "payment not found") }
func ErrCancelInvalidState(message string) *AppError {
	return newFor(familyCancel, KindInvalidState, message)
}
func ErrCancelForbidden() *AppError { return newFor(familyCancel, KindForbidden, "operation not permitted") }
func ErrCancelConflict() *AppError {
	return newFor(familyCancel, KindConflict, "concurrent modification, retry with refreshed state")
}
func ErrCancelAdapterFailure(err error) *AppError {
	return newFor(familyCancel, KindAdapterFailure, "bank adapter did not complete the operation").wrapping(err)
}

// ---- cross-cutting ----

func ErrRateLimited(fam string) *AppError {
	return newFor(family(fam), KindRateLimited, "rate limit exceeded")
}

// ErrReplayDetected signals a signed request body was already seen within
// the replay window (§4.1); fam ties the code to the calling operation's
// family so the four-digit code still reads as e.g. "1408"/"2408"/"3408".
func ErrReplayDetected(fam string) *AppError {
	return newFor(family(fam), KindConflict, "request already processed")
}

// InternalError wraps an unexpected error as the catch-all 9999 kind.
func InternalError(err error) *AppError {
	e := newFor(familyInternal, KindInternal, "internal server error")
	return e.wrapping(err)
}

// Validation is a convenience for call sites that don't yet know their
// operation family; prefer the per-family constructors above.
func Validation(message string) *AppError {
	return newFor(familyInitCheck, KindValidation, message)
}

// From recovers an *AppError from an arbitrary error, falling back to
// InternalError when err isn't already one.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return InternalError(err)
}
