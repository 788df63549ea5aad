package service

import (
	"time"

	"secure-payment-gateway/internal/core/domain"
)

// terminalCheckStatuses is the §4.2 set used to pick the long TTL: every
// payment returned by a check must be in one of these for the 5-minute
// terminal TTL to apply.
var terminalCheckStatuses = map[domain.Status]bool{
	domain.StatusConfirmed: true,
	domain.StatusCancelled: true,
	domain.StatusRefunded:  true,
	domain.StatusFailed:    true,
	domain.StatusRejected:  true,
	domain.StatusExpired:   true,
}

// CheckTTL selects the status-aware TTL for a cached Check response, per
// §4.2: 30s unless every returned payment is terminal, in which case 5min.
func CheckTTL(payments []domain.Payment, activeTTL, terminalTTL time.Duration) time.Duration {
	if len(payments) == 0 {
		return activeTTL
	}
	for _, p := range payments {
		if !terminalCheckStatuses[p.Status] {
			return activeTTL
		}
	}
	return terminalTTL
}
