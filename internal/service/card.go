package service

import (
	"fmt"
	"strconv"
	"time"

	"secure-payment-gateway/internal/core/ports"
)

// ValidateCard checks Luhn validity, PAN length, expiry freshness, and CVV
// format for a hosted-form submission (§4.4.2). now is injected so tests
// can control "not in the past" without real wall-clock dependence.
func ValidateCard(card ports.CardInput, now time.Time) error {
	pan := card.PAN
	if len(pan) < 13 || len(pan) > 19 {
		return fmt.Errorf("card number must be 13-19 digits")
	}
	if !luhnValid(pan) {
		return fmt.Errorf("card number fails Luhn check")
	}

	mm, err := strconv.Atoi(card.ExpiryMM)
	if err != nil || mm < 1 || mm > 12 {
		return fmt.Errorf("invalid expiry month")
	}
	yy, err := strconv.Atoi(card.ExpiryYY)
	if err != nil {
		return fmt.Errorf("invalid expiry year")
	}
	fullYear := 2000 + yy
	expiry := time.Date(fullYear, time.Month(mm)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(expiry) {
		return fmt.Errorf("card has expired")
	}

	if len(card.CVV) < 3 || len(card.CVV) > 4 {
		return fmt.Errorf("cvv must be 3-4 digits")
	}
	for _, r := range card.CVV {
		if r < '0' || r > '9' {
			return fmt.Errorf("cvv must be numeric")
		}
	}

	return nil
}

// luhnValid reports whether the digit string passes the Luhn checksum.
func luhnValid(number string) bool {
	sum := 0
	alt := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// MaskPAN returns the masked card number stored on the Payment after
// authorization: first 6 and last 4 digits visible, the rest replaced.
func MaskPAN(pan string) string {
	if len(pan) <= 10 {
		return pan
	}
	masked := make([]byte, len(pan))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked, pan[:6])
	copy(masked[len(masked)-4:], pan[len(pan)-4:])
	return string(masked)
}
