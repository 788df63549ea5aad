package middleware

import (
	"fmt"
	"strconv"
	"time"

	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/pkg/apperror"
	"secure-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group (C11).
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// DefaultRateLimitRules returns the per-endpoint-group limits (§9/C11).
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"paymentinit":      {Limit: 100, Window: time.Minute},
		"paymentform":      {Limit: 200, Window: time.Minute},
		"paymentconfirm":   {Limit: 100, Window: time.Minute},
		"paymentcancel":    {Limit: 60, Window: time.Minute},
		"paymentcheck":     {Limit: 300, Window: time.Minute},
		"teamregistration": {Limit: 5, Window: time.Hour},
		"teamlogin":        {Limit: 10, Window: time.Minute},
		"dashboard":        {Limit: 60, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group,
// backed by the injected ports.RateLimiter so handlers never depend on the
// concrete Redis implementation.
func RateLimiter(store ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", group, identifier)

		allowed, remaining, resetAt, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int64(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimited(familyForGroup(group)))
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate-limit key source: the authenticated
// team when the auth middleware already ran, else the client IP.
func extractIdentifier(c *gin.Context) string {
	if slug, exists := c.Get(CtxTeamSlug); exists {
		return fmt.Sprintf("%v", slug)
	}
	return c.ClientIP()
}

// familyForGroup maps an endpoint group to the error-code family its 429
// response should carry.
func familyForGroup(group string) string {
	switch group {
	case "paymentconfirm":
		return "2"
	case "paymentcancel":
		return "3"
	default:
		return "1"
	}
}
