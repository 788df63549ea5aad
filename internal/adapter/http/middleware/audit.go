package middleware

import (
	"time"

	"secure-payment-gateway/internal/core/domain"
	"secure-payment-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware for HTTP-layer actions that the
// lifecycle engine itself has no visibility into — team registration and
// login. Payment operations (init/confirm/cancel/...) are audited from
// inside PaymentLifecycleEngine instead, where the outcome and payment ID
// are already known; this middleware must not duplicate those entries.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action, ok := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if !ok {
			return
		}

		outcome := domain.AuditOutcomeSuccess
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			outcome = domain.AuditOutcomeFailure
		}

		var teamSlug *string
		if slugVal, exists := c.Get(CtxTeamSlug); exists {
			if s, ok := slugVal.(string); ok {
				teamSlug = &s
			}
		}

		auditSvc.Log(c.Request.Context(), domain.AuditLogEntry{
			ID:        uuid.New(),
			Timestamp: time.Now(),
			Actor:     actorFor(teamSlug),
			Action:    action,
			TeamSlug:  teamSlug,
			Outcome:   outcome,
			Detail: map[string]string{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			},
		})
	}
}

func actorFor(teamSlug *string) string {
	if teamSlug != nil {
		return *teamSlug
	}
	return "anonymous"
}

func mapPathToAction(path, method string) (domain.AuditAction, bool) {
	switch {
	case path == "/api/v1/teamregistration/register" && method == "POST":
		return domain.AuditActionTeamRegister, true
	case path == "/api/v1/teamlogin/login" && method == "POST":
		return domain.AuditActionTeamLogin, true
	}
	return "", false
}
