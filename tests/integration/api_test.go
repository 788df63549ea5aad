package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"secure-payment-gateway/config"
	"secure-payment-gateway/internal/adapter/bank"
	httpHandler "secure-payment-gateway/internal/adapter/http/handler"
	redisStorage "secure-payment-gateway/internal/adapter/storage/redis"
	"secure-payment-gateway/internal/core/ports"
	"secure-payment-gateway/internal/platform/clock"
	"secure-payment-gateway/internal/platform/metrics"
	"secure-payment-gateway/internal/service"
	"secure-payment-gateway/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the full HTTP stack — router, middleware, services — against
// in-memory repositories and a miniredis-backed Redis, exercising the real
// request/response path end to end without a live database.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	authn  ports.Authenticator
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	idempCache := redisStorage.NewIdempotencyCache(rdb)
	replayStore := redisStorage.NewReplayStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	encSvc, err := service.NewAESEncryptionService("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	authn := service.NewHMACAuthenticator()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32-bytes!!!!", 24*time.Hour, "test-issuer")
	clk := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	teamRepo := newInMemoryTeamRepo()
	paymentRepo := newInMemoryPaymentRepo()
	txRepo := newInMemoryTransactionRepo()
	idempRepo := newInMemoryIdempotencyRepo()
	auditRepo := newInMemoryAuditRepo()
	transactor := newInMemoryTransactor()

	log := logger.New("debug", false)
	auditSvc := service.NewAuditService(auditRepo, clk, log)
	webhookSvc := service.NewWebhookService(teamRepo, encSvc, http.DefaultClient, log)
	metricsSink := metrics.New()
	bankAdapter := bank.NewInMemory()

	limits := testLimitsConfig()
	cacheCfg := testCacheConfig()

	teamSvc := service.NewTeamService(teamRepo, hashSvc, tokenSvc, encSvc, clk, 5, 15*time.Minute)
	lifecycle := service.NewPaymentLifecycleEngine(
		teamRepo, paymentRepo, txRepo, idempCache, idempRepo, transactor,
		bankAdapter, auditSvc, webhookSvc, metricsSink, clk, limits, cacheCfg, log,
	)
	statusSvc := service.NewStatusQueryService(paymentRepo, teamRepo, idempCache, cacheCfg, log)
	reportingSvc := service.NewReportingService(txRepo, paymentRepo)
	teamAdminSvc := service.NewTeamAdminService(teamRepo, encSvc, clk)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TeamSvc:        teamSvc,
		TeamAdminSvc:   teamAdminSvc,
		Lifecycle:      lifecycle,
		StatusSvc:      statusSvc,
		ReportingSvc:   reportingSvc,
		TeamRepo:       teamRepo,
		EncSvc:         encSvc,
		AuthSvc:        authn,
		ReplayStore:    replayStore,
		ReplayWindow:   24 * time.Hour,
		Clock:          clk,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	server := httptest.NewServer(router)

	return &testApp{server: server, redis: mr, authn: authn}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

func testLimitsConfig() config.LimitsConfig {
	return config.LimitsConfig{
		DefaultPaymentExpiry: 24 * time.Hour,
		MinPaymentExpiry:     5 * time.Minute,
		MaxPaymentExpiry:     72 * time.Hour,
	}
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		CheckTTLActive:   30 * time.Second,
		CheckTTLTerminal: 5 * time.Minute,
		MutationTTL:      30 * time.Minute,
	}
}

// --- Helpers to sign and send core-API requests ---

// initToken computes the §4.1 token for a paymentinit/init call.
func (a *testApp) initToken(secret, teamSlug, orderID, currency string, amount int64) string {
	fields := map[string]string{
		"TeamSlug": teamSlug,
		"OrderId":  orderID,
		"Currency": currency,
		"Amount":   fmt.Sprintf("%d", amount),
	}
	return a.authn.BuildToken(ports.OpInit, fields, secret)
}

// pidToken computes the §4.1 token for confirm/cancel/check calls, which are
// signed over just TeamSlug and PaymentId.
func (a *testApp) pidToken(op ports.Operation, secret, teamSlug, paymentID string) string {
	fields := map[string]string{
		"TeamSlug":  teamSlug,
		"PaymentId": paymentID,
	}
	return a.authn.BuildToken(op, fields, secret)
}

func (a *testApp) postJSON(t *testing.T, path string, body map[string]interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(a.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", string(raw))
	return body
}

// registerTeam registers a team and returns its slug and plaintext API secret.
func registerTeam(t *testing.T, app *testApp, slug string) (apiSecret string) {
	t.Helper()
	resp := app.postJSON(t, "/api/v1/teamregistration/register", map[string]interface{}{
		"slug":         slug,
		"password":     "StrongPass123!",
		"name":         "Acme Shop",
		"contactEmail": "ops@" + slug + ".test",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	data := body["data"].(map[string]interface{})
	return data["apiSecret"].(string)
}

func loginTeam(t *testing.T, app *testApp, slug string) string {
	t.Helper()
	resp := app.postJSON(t, "/api/v1/teamlogin/login", map[string]interface{}{
		"slug":     slug,
		"password": "StrongPass123!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	data := body["data"].(map[string]interface{})
	return data["token"].(string)
}

// initPayment drives POST /paymentinit/init with a correctly signed token.
func initPayment(t *testing.T, app *testApp, slug, secret, orderID string, amount int64) map[string]interface{} {
	t.Helper()
	token := app.initToken(secret, slug, orderID, "RUB", amount)
	resp := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": slug,
		"Token":    token,
		"Amount":   amount,
		"Currency": "RUB",
		"OrderId":  orderID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	return body["data"].(map[string]interface{})
}

// submitCard drives the hosted-form POST that authorizes a payment.
func submitCard(t *testing.T, app *testApp, paymentID, pan string) map[string]interface{} {
	t.Helper()
	form := url.Values{
		"payment_id": {paymentID},
		"pan":        {pan},
		"expiry_mm":  {"12"},
		"expiry_yy":  {"30"},
		"cvv":        {"123"},
	}
	resp, err := http.Post(app.server.URL+"/api/v1/paymentform/submit", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	body := decodeEnvelope(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, "submit response: %v", body)
	return body["data"].(map[string]interface{})
}

// --- Integration tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	secret := registerTeam(t, app, "acme")
	assert.NotEmpty(t, secret)

	token := loginTeam(t, app, "acme")
	assert.NotEmpty(t, token)
}

func TestIntegration_LoginWrongCredentials(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.postJSON(t, "/api/v1/teamlogin/login", map[string]interface{}{
		"slug": "nobody", "password": "wrong",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_DuplicateSlugRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	registerTeam(t, app, "dup-team")

	resp := app.postJSON(t, "/api/v1/teamregistration/register", map[string]interface{}{
		"slug": "dup-team", "password": "StrongPass123!", "name": "Dup", "contactEmail": "a@b.test",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIntegration_JWT_DashboardUnauthorized(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/dashboard/transactions", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_JWT_DashboardListsTransactions(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	secret := registerTeam(t, app, "acme2")
	token := loginTeam(t, app, "acme2")

	payment := initPayment(t, app, "acme2", secret, "order-1", 10000)
	submitCard(t, app, payment["PaymentId"].(string), "4111111111111111")

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/dashboard/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	items := body["data"].([]interface{})
	assert.Len(t, items, 1, "one authorize transaction should have been recorded")
}

// TestIntegration_HappyPath exercises the core lifecycle described in the
// register -> init -> form -> confirm -> check scenario: a full payment
// going from creation to capture.
func TestIntegration_HappyPath(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	secret := registerTeam(t, app, "happy")

	payment := initPayment(t, app, "happy", secret, "order-happy", 50000)
	assert.Equal(t, "NEW", payment["Status"])
	paymentID := payment["PaymentId"].(string)

	renderResp, err := http.Get(app.server.URL + "/api/v1/paymentform/render/" + paymentID)
	require.NoError(t, err)
	renderResp.Body.Close()
	assert.Equal(t, http.StatusOK, renderResp.StatusCode)

	authorized := submitCard(t, app, paymentID, "4111111111111111")
	assert.Equal(t, "AUTHORIZED", authorized["Status"])

	confirmToken := app.pidToken(ports.OpConfirm, secret, "happy", paymentID)
	confirmResp := app.postJSON(t, "/api/v1/paymentconfirm/confirm", map[string]interface{}{
		"TeamSlug":  "happy",
		"Token":     confirmToken,
		"PaymentId": paymentID,
	})
	confirmBody := decodeEnvelope(t, confirmResp)
	require.Equal(t, http.StatusOK, confirmResp.StatusCode, "confirm: %v", confirmBody)
	confirmed := confirmBody["data"].(map[string]interface{})
	assert.Equal(t, "CONFIRMED", confirmed["Status"])

	checkToken := app.pidToken(ports.OpCheck, secret, "happy", paymentID)
	checkResp := app.postJSON(t, "/api/v1/paymentcheck/check", map[string]interface{}{
		"TeamSlug":  "happy",
		"Token":     checkToken,
		"PaymentId": paymentID,
	})
	checkBody := decodeEnvelope(t, checkResp)
	require.Equal(t, http.StatusOK, checkResp.StatusCode, "check: %v", checkBody)
	results := checkBody["data"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "CONFIRMED", results[0].(map[string]interface{})["Status"])
}

func TestIntegration_HMAC_BadToken(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	registerTeam(t, app, "badtoken")

	resp := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": "badtoken",
		"Token":    "0000000000000000000000000000000000000000000000000000000000000000",
		"Amount":   10000,
		"Currency": "RUB",
		"OrderId":  "order-1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_HMAC_MissingToken(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.postJSON(t, "/api/v1/paymentinit/init", map[string]interface{}{
		"TeamSlug": "whoever", "Amount": 10000, "Currency": "RUB", "OrderId": "order-1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_HMAC_ReplayRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	secret := registerTeam(t, app, "replay")
	token := app.initToken(secret, "replay", "order-replay", "RUB", 10000)
	body := map[string]interface{}{
		"TeamSlug": "replay", "Token": token, "Amount": 10000, "Currency": "RUB", "OrderId": "order-replay",
	}

	first := app.postJSON(t, "/api/v1/paymentinit/init", body)
	first.Body.Close()
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := app.postJSON(t, "/api/v1/paymentinit/init", body)
	defer second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}
