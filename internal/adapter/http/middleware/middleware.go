package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/internal/service"
	"secure-payment-gateway/pkg/apperror"
	"secure-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys populated by the auth middlewares below.
const (
	CtxTeamID    = "team_id"
	CtxTeamSlug  = "team_slug"
	CtxTeam      = "team"
	CtxRequestID = "request_id"
)

// familyFor derives the error-code family (§6) an Operation's failures
// belong to, so auth rejections carry the right leading digit.
func familyFor(op ports.Operation) string {
	switch op {
	case ports.OpConfirm:
		return "2"
	case ports.OpCancel:
		return "3"
	default: // OpInit, OpCheck share family 1
		return "1"
	}
}

func authErrorFor(op ports.Operation, message string) *apperror.AppError {
	switch op {
	case ports.OpConfirm:
		return apperror.ErrConfirmAuth(message)
	case ports.OpCancel:
		return apperror.ErrCancelAuth(message)
	default:
		return apperror.ErrInitAuth(message)
	}
}

// jsonScalarString renders a decoded JSON value the way it must appear in
// the HMAC canonical string (§4.1): numbers without a trailing ".0", strings
// verbatim, booleans as "true"/"false", and null or nested values as "".
func jsonScalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}

// HMACAuth authenticates a core payment-API call per §4.1: the signed
// fields (TeamSlug, PaymentId/OrderId/Amount/Currency depending on op) and
// the Token live in the JSON request body itself, not in headers, so the
// body is buffered, decoded once into a generic map to extract them, and
// restored for the handler's own binding.
func HMACAuth(
	op ports.Operation,
	teamRepo ports.TeamRepository,
	encSvc ports.EncryptionService,
	authSvc ports.Authenticator,
	replayStore ports.ReplayStore,
	replayWindow time.Duration,
	clk ports.Clock,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var raw map[string]interface{}
		source := bodyBytes
		if len(source) == 0 {
			// GET /paymentcheck/status signs over query parameters instead
			// of a JSON body.
			raw = make(map[string]interface{}, len(c.Request.URL.Query()))
			for k, v := range c.Request.URL.Query() {
				if len(v) > 0 {
					raw[k] = v[0]
				}
			}
		} else if jsonErr := json.Unmarshal(source, &raw); jsonErr != nil {
			response.Error(c, apperror.Validation("malformed JSON body"))
			c.Abort()
			return
		}

		teamSlug, _ := raw["TeamSlug"].(string)
		token, _ := raw["Token"].(string)
		if teamSlug == "" {
			response.Error(c, authErrorFor(op, "missing_token"))
			c.Abort()
			return
		}
		if token == "" {
			response.Error(c, authErrorFor(op, "missing_token"))
			c.Abort()
			return
		}

		fields := make(map[string]string)
		for _, name := range service.FieldsForOperation(op) {
			fields[name] = jsonScalarString(raw[name])
		}
		if v, ok := raw["Amount"]; ok && fields["Amount"] == "" {
			fields["Amount"] = jsonScalarString(v)
		}

		team, err := teamRepo.GetBySlug(c.Request.Context(), teamSlug)
		if err != nil {
			log.Error().Err(err).Str("team_slug", teamSlug).Msg("hmac auth: team lookup failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if team == nil {
			response.Error(c, authErrorFor(op, "unknown_team"))
			c.Abort()
			return
		}
		if team.IsLocked(clk.Now()) {
			response.Error(c, authErrorFor(op, "team_locked"))
			c.Abort()
			return
		}
		if !team.IsActive {
			response.Error(c, authErrorFor(op, "team_inactive"))
			c.Abort()
			return
		}

		secret, err := encSvc.Decrypt(team.APISecretEnc)
		if err != nil {
			log.Error().Err(err).Str("team_slug", teamSlug).Msg("hmac auth: decrypt api secret failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}

		if !authSvc.Verify(op, fields, secret, token) {
			response.Error(c, authErrorFor(op, "bad_token"))
			c.Abort()
			return
		}

		isNew, err := replayStore.CheckAndSet(c.Request.Context(), team.ID, string(op)+":"+token, replayWindow)
		if err != nil {
			log.Warn().Err(err).Msg("hmac auth: replay store error, allowing request")
		} else if !isNew {
			response.Error(c, apperror.ErrReplayDetected(familyFor(op)))
			c.Abort()
			return
		}

		c.Set(CtxTeamID, team.ID)
		c.Set(CtxTeamSlug, team.Slug)
		c.Set(CtxTeam, team)
		c.Next()
	}
}

// AdminAuth authenticates the separate operator surface (§4.1): a single
// shared bearer token, constant-time compared, that never mutates payment
// state — read-only diagnostics and configuration only.
func AdminAuth(headerName, expectedToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(headerName)
		if expectedToken == "" || !constantTimeEqual(got, expectedToken) {
			response.Error(c, apperror.ErrInitAuth("invalid admin token"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// JWTAuth validates the self-service session JWT used by the dashboard/
// team-admin surface (§15).
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrRegisterAuth("missing or malformed bearer token"))
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrRegisterAuth("invalid or expired session token"))
			c.Abort()
			return
		}

		c.Set(CtxTeamID, claims.TeamID)
		c.Set(CtxTeamSlug, claims.Slug)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"errorCode": "9999",
					"message":   "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
