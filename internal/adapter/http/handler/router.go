package handler

import (
	"time"

	"secure-payment-gateway/internal/adapter/http/middleware"
	"secure-payment-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TeamSvc        ports.TeamService
	TeamAdminSvc   ports.TeamAdminService // nil = team self-service disabled
	Lifecycle      ports.LifecycleEngine
	StatusSvc      ports.StatusQueryService
	ReportingSvc   ports.ReportingService
	TeamRepo       ports.TeamRepository
	EncSvc         ports.EncryptionService
	AuthSvc        ports.Authenticator
	ReplayStore    ports.ReplayStore
	ReplayWindow   time.Duration
	Clock          ports.Clock
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	AdminHeader    string
	AdminToken     string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	hmac := func(op ports.Operation) gin.HandlerFunc {
		return middleware.HMACAuth(op, deps.TeamRepo, deps.EncSvc, deps.AuthSvc, deps.ReplayStore, deps.ReplayWindow, deps.Clock, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Team registration / self-service login (no auth) ---
	authHandler := NewAuthHandler(deps.TeamSvc)
	registration := v1.Group("/teamregistration")
	{
		registration.POST("/register", rl("teamregistration"), authHandler.Register)
	}
	login := v1.Group("/teamlogin")
	{
		login.POST("/login", rl("teamlogin"), authHandler.Login)
	}

	// --- Core HMAC-authenticated payment API ---
	paymentHandler := NewPaymentHandler(deps.Lifecycle, deps.StatusSvc)

	init_ := v1.Group("/paymentinit")
	{
		init_.POST("/init", rl("paymentinit"), hmac(ports.OpInit), paymentHandler.Init)
	}

	form := v1.Group("/paymentform")
	{
		form.GET("/render/:pid", rl("paymentform"), paymentHandler.RenderForm)
		form.POST("/submit", rl("paymentform"), paymentHandler.SubmitForm)
		form.GET("/result/:pid", rl("paymentform"), paymentHandler.Result)
	}

	confirm := v1.Group("/paymentconfirm")
	{
		confirm.POST("/confirm", rl("paymentconfirm"), hmac(ports.OpConfirm), paymentHandler.Confirm)
	}

	cancel := v1.Group("/paymentcancel")
	{
		cancel.POST("/cancel", rl("paymentcancel"), hmac(ports.OpCancel), paymentHandler.Cancel)
	}

	check := v1.Group("/paymentcheck")
	{
		check.POST("/check", rl("paymentcheck"), hmac(ports.OpCheck), paymentHandler.Check)
		check.GET("/status", rl("paymentcheck"), hmac(ports.OpCheck), paymentHandler.Check)
	}

	// --- JWT-authenticated self-service dashboard ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)
	dashboard := v1.Group("/dashboard", jwtAuth)
	{
		dashboard.GET("/transactions", rl("dashboard"), dashboardHandler.ListTransactions)
	}

	if deps.TeamAdminSvc != nil {
		teamAdminHandler := NewTeamAdminHandler(deps.TeamAdminSvc)
		team := v1.Group("/team/me", jwtAuth)
		{
			team.GET("", rl("dashboard"), teamAdminHandler.GetProfile)
			team.PUT("/notification-url", rl("dashboard"), teamAdminHandler.UpdateNotificationURL)
			team.POST("/rotate-webhook-secret", rl("dashboard"), teamAdminHandler.RotateWebhookSecret)
		}
	}

	// --- Operator diagnostics surface (§4.1): single shared bearer token,
	// constant-time compared, never mutates payment state.
	if deps.AdminToken != "" {
		admin := v1.Group("/admin", middleware.AdminAuth(deps.AdminHeader, deps.AdminToken))
		{
			admin.GET("/health", HealthCheck(deps.HealthCheckers...))
		}
	}

	return r
}
