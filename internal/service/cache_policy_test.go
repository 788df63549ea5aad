package service

import (
	"testing"
	"time"

	"secure-payment-gateway/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestCheckTTL_NonTerminalUsesActiveTTL(t *testing.T) {
	payments := []domain.Payment{{Status: domain.StatusNew}}
	ttl := CheckTTL(payments, 30*time.Second, 5*time.Minute)
	assert.Equal(t, 30*time.Second, ttl)
}

func TestCheckTTL_AllTerminalUsesTerminalTTL(t *testing.T) {
	payments := []domain.Payment{
		{Status: domain.StatusConfirmed},
		{Status: domain.StatusRefunded},
	}
	ttl := CheckTTL(payments, 30*time.Second, 5*time.Minute)
	assert.Equal(t, 5*time.Minute, ttl)
}

func TestCheckTTL_MixedUsesActiveTTL(t *testing.T) {
	payments := []domain.Payment{
		{Status: domain.StatusConfirmed},
		{Status: domain.StatusNew},
	}
	ttl := CheckTTL(payments, 30*time.Second, 5*time.Minute)
	assert.Equal(t, 30*time.Second, ttl)
}

func TestCheckTTL_EmptyUsesActiveTTL(t *testing.T) {
	ttl := CheckTTL(nil, 30*time.Second, 5*time.Minute)
	assert.Equal(t, 30*time.Second, ttl)
}
