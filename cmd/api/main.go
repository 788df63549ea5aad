package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secure-payment-gateway/config"
	"secure-payment-gateway/internal/adapter/bank"
	httpHandler "secure-payment-gateway/internal/adapter/http/handler"
	pgStorage "secure-payment-gateway/internal/adapter/storage/postgres"
	redisStorage "secure-payment-gateway/internal/adapter/storage/redis"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/internal/platform/clock"
	"secure-payment-gateway/internal/platform/metrics"
	"secure-payment-gateway/internal/service"
	"secure-payment-gateway/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Secure Payment Gateway")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	teamRepo := pgStorage.NewTeamRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	webhookRepo := pgStorage.NewWebhookRepository(pool)

	// Redis-backed stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	replayStore := redisStorage.NewReplayStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Platform
	clk := clock.System{}
	metricsSink := metrics.New()

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	hashSvc := service.NewArgon2HashService()
	hmacAuthSvc := service.NewHMACAuthenticator()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Acquiring-bank adapter, circuit-broken in front of the deterministic
	// test double.
	bankAdapter := bank.NewCircuitBreaker(bank.NewInMemory(), bank.DefaultCircuitBreakerConfig(), clk)

	auditSvc := service.NewAuditService(auditRepo, clk, log)
	webhookSvc := service.NewWebhookService(teamRepo, encSvc, &http.Client{Timeout: 10 * time.Second}, log, webhookRepo)

	teamSvc := service.NewTeamService(teamRepo, hashSvc, tokenSvc, encSvc, clk, cfg.Lockout.Threshold, cfg.Lockout.Duration)
	teamAdminSvc := service.NewTeamAdminService(teamRepo, encSvc, clk)
	reportingSvc := service.NewReportingService(txRepo, paymentRepo)
	statusSvc := service.NewStatusQueryService(paymentRepo, teamRepo, idempotencyCache, cfg.Cache, log)

	lifecycle := service.NewPaymentLifecycleEngine(
		teamRepo,
		paymentRepo,
		txRepo,
		idempotencyCache,
		idempotencyRepo,
		transactor,
		bankAdapter,
		auditSvc,
		webhookSvc,
		metricsSink,
		clk,
		cfg.Limits,
		cfg.Cache,
		log,
	)

	sweeper := service.NewExpirySweeper(paymentRepo, idempotencyCache, clk, metricsSink, log, service.DefaultExpirySweepConfig())
	stopSweep := startExpirySweepLoop(ctx, sweeper, log)
	defer stopSweep()

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TeamSvc:        teamSvc,
		TeamAdminSvc:   teamAdminSvc,
		Lifecycle:      lifecycle,
		StatusSvc:      statusSvc,
		ReportingSvc:   reportingSvc,
		TeamRepo:       teamRepo,
		EncSvc:         encSvc,
		AuthSvc:        hmacAuthSvc,
		ReplayStore:    replayStore,
		ReplayWindow:   cfg.HMAC.ReplayWindow,
		Clock:          clk,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		AdminHeader:    cfg.Admin.HeaderName,
		AdminToken:     cfg.Admin.BearerToken,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// startExpirySweepLoop runs the expiry sweeper on a fixed interval until the
// returned stop function is called.
func startExpirySweepLoop(ctx context.Context, sweeper ports.ExpirySweeper, log zerolog.Logger) func() {
	ticker := time.NewTicker(time.Minute)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				swept, err := sweeper.SweepOnce(ctx)
				if err != nil {
					log.Error().Err(err).Msg("expiry sweep failed")
					continue
				}
				if swept > 0 {
					log.Info().Int("swept", swept).Msg("expiry sweep completed")
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
