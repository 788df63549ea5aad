package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("1100", "invalid amount", http.StatusBadRequest),
			expected: "[1100] invalid amount",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("9999", "db error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[9999] db error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("9999", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("1100", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestInitCheckFamily(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Validation", ErrInitValidation("bad amount"), "1100", 400},
		{"Auth", ErrInitAuth("missing_token"), "1001", 401},
		{"LimitExceeded", ErrInitLimitExceeded(), "1022", 422},
		{"TeamInactive", ErrInitTeamInactive(), "1003", 403},
		{"ItemsMismatch", ErrInitItemsMismatch(), "1100", 400},
		{"CheckNotFound", ErrCheckNotFound(), "1004", 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestConfirmFamily(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"NotFound", ErrConfirmNotFound(), "2004", 404},
		{"InvalidState", ErrConfirmInvalidState("cannot be confirmed"), "2409", 409},
		{"Conflict", ErrConfirmConflict(), "2408", 409},
		{"AdapterFailure", ErrConfirmAdapterFailure(errors.New("timeout")), "2502", 502},
		{"RegisterValidation", ErrRegisterValidation("slug too short"), "2100", 400},
		{"RegisterConflict", ErrRegisterConflict("slug exists"), "2408", 409},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestCancelFamily(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"NotFound", ErrCancelNotFound(), "3004", 404},
		{"InvalidState", ErrCancelInvalidState("payment cannot be cancelled"), "3409", 409},
		{"Forbidden", ErrCancelForbidden(), "3003", 403},
		{"AdapterFailure", ErrCancelAdapterFailure(errors.New("bank down")), "3502", 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestScenarioFourInvalidStateMessage(t *testing.T) {
	err := ErrCancelInvalidState("payment cannot be cancelled from its current status")
	assert.Equal(t, "3409", err.Code)
	assert.Contains(t, err.Message, "cannot be cancelled")
}

func TestScenarioFiveTamperedToken(t *testing.T) {
	err := ErrInitAuth("bad_token")
	assert.Equal(t, "1001", err.Code)
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus)
}

func TestRateLimited(t *testing.T) {
	err := ErrRateLimited("1")
	assert.Equal(t, "1029", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestInternalError(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	err := InternalError(inner)
	assert.Equal(t, "9999", err.Code)
	assert.Equal(t, 500, err.HTTPStatus)
	assert.True(t, errors.Is(err, inner))
}

func TestFrom(t *testing.T) {
	wrapped := ErrCancelNotFound()
	assert.Same(t, wrapped, From(wrapped))

	plain := fmt.Errorf("boom")
	converted := From(plain)
	assert.Equal(t, "9999", converted.Code)
	assert.True(t, errors.Is(converted, plain))

	assert.Nil(t, From(nil))
}
