package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/gabrielabsi/cvx-backend/api/http"
	"github.com/gabrielabsi/cvx-backend/api/http/handlers"
	"github.com/gabrielabsi/cvx-backend/pkg/analysis"
	"github.com/gabrielabsi/cvx-backend/pkg/auth"
	"github.com/gabrielabsi/cvx-backend/pkg/checkout"
	"github.com/gabrielabsi/cvx-backend/pkg/health"
	"github.com/gabrielabsi/cvx-backend/pkg/intent"
	"github.com/gabrielabsi/cvx-backend/pkg/payments"
	"github.com/gabrielabsi/cvx-backend/pkg/ratelimit"
	"github.com/gabrielabsi/cvx-backend/pkg/security/jwt"
)

// ---- in-memory fakes ----

type memLedger struct {
	mu   sync.Mutex
	rows map[uuid.UUID]intent.Record
}

func newMemLedger() *memLedger { return &memLedger{rows: make(map[uuid.UUID]intent.Record)} }

func (m *memLedger) Insert(ctx context.Context, rec intent.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.TokenID] = rec
	return nil
}

func (m *memLedger) Get(ctx context.Context, tokenID uuid.UUID) (intent.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[tokenID]
	if !ok {
		return intent.Record{}, intent.ErrTokenNotFound
	}
	return rec, nil
}

func (m *memLedger) MarkUsed(ctx context.Context, tokenID uuid.UUID, planID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[tokenID]
	if !ok || rec.Used || rec.PlanID != planID {
		return false, nil
	}
	rec.Used = true
	m.rows[tokenID] = rec
	return true, nil
}

type memCounters struct {
	mu   sync.Mutex
	rows map[string]*ratelimit.Counter
}

func newMemCounters() *memCounters { return &memCounters{rows: make(map[string]*ratelimit.Counter)} }

func (m *memCounters) Active(ctx context.Context, identifier, endpoint string, since time.Time) (*ratelimit.Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[identifier+"|"+endpoint]
	if !ok || c.WindowStart.Before(since) {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memCounters) Insert(ctx context.Context, c ratelimit.Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := c
	m.rows[c.Identifier+"|"+c.Endpoint] = &cp
	return nil
}

func (m *memCounters) Increment(ctx context.Context, identifier, endpoint string, windowStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[identifier+"|"+endpoint]; ok {
		c.Count++
	}
	return nil
}

type memUsers struct {
	mu   sync.Mutex
	rows map[string]auth.User
}

func newMemUsers() *memUsers { return &memUsers{rows: make(map[string]auth.User)} }

func (m *memUsers) Create(ctx context.Context, user auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[user.Email]; ok {
		return auth.ErrUserAlreadyExists
	}
	m.rows[user.Email] = user
	return nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.rows[email]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) UpdatePlan(ctx context.Context, email, plan string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.rows[email]
	if !ok {
		return auth.ErrNotFound
	}
	user.Plan = plan
	m.rows[email] = user
	return nil
}

type fakePayments struct {
	mu    sync.Mutex
	calls []payments.SessionRequest
}

func (f *fakePayments) CreateSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return payments.Session{ID: "cs_test_123", URL: "https://pay.example/cs_test_123"}, nil
}

type fakeModel struct{ reply string }

func (f *fakeModel) Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.reply, nil
}

type okChecker struct{}

func (okChecker) Name() string                    { return "ok" }
func (okChecker) Check(ctx context.Context) error { return nil }

// ---- wiring ----

const (
	testJWTSecret = "test-jwt-secret"
	testIssuer    = "cvx-test"
)

func newTestApp(t *testing.T) (*fiber.App, *fakePayments) {
	t.Helper()

	app := fiber.New()
	app.Use(requestid.New())

	plans := checkout.DefaultCatalog()
	fp := intent.NewFingerprinter("test-salt")
	limiter := ratelimit.New(newMemCounters())
	intents := intent.NewService(newMemLedger(), limiter, intent.NewCodec("test-secret"), fp, intent.Options{
		AllowedPlans: plans.Purchasable(),
		DefaultPlan:  "basico",
		TTL:          10 * time.Minute,
		RateMax:      10,
		RateWindow:   10 * time.Minute,
	})
	pay := &fakePayments{}

	jwtGen := jwt.NewGenerator(testJWTSecret, testIssuer, time.Hour)
	authUC := auth.NewAuthService(newMemUsers(), jwtGen)
	analysisUC := analysis.NewService(&fakeModel{reply: `{"fitScore":70,"strengths":[],"weaknesses":[],"rewrittenResume":""}`}, "test-model", plans, limiter)

	httpapi.Register(app,
		handlers.NewAuthHandler(authUC),
		handlers.NewHealthHandler(health.NewService(okChecker{})),
		handlers.NewIntentHandler(intents),
		handlers.NewCheckoutHandler(checkout.NewService(plans, intents, pay, limiter, fp)),
		handlers.NewAnalysisHandler(analysisUC),
		jwt.NewAuthMiddleware(testJWTSecret, testIssuer),
		jwt.NewOptionalAuthMiddleware(testJWTSecret, testIssuer),
	)
	return app, pay
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func errorCode(t *testing.T, body map[string]any) (code, requestID string) {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ = envelope["code"].(string)
	requestID, _ = envelope["request_id"].(string)
	return code, requestID
}

// ---- tests ----

func TestIssueIntentEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]string{"planId": "basico"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["intent_token"])

	expires, err := time.Parse(time.RFC3339, body["expires_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expires, time.Minute)
}

func TestIssueIntentRejectsUnknownPlan(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]string{"planId": "enterprise"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, requestID := errorCode(t, body)
	assert.Equal(t, "INVALID_INPUT", code)
	assert.NotEmpty(t, requestID)
}

func TestIssueIntentRateLimit(t *testing.T) {
	app, _ := newTestApp(t)

	for i := 0; i < 10; i++ {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]string{"planId": "basico"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d within the window", i+1)
	}
	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]string{"planId": "basico"}, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "RATE_LIMITED", code)
}

func TestIssueIntentMethodNotAllowed(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/intent", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGuestCheckoutSessionEndToEnd(t *testing.T) {
	app, pay := newTestApp(t)

	_, issue := doJSON(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]string{"planId": "basico"}, nil)
	token, _ := issue["intent_token"].(string)
	require.NotEmpty(t, token)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/session",
		map[string]string{"intentToken": token, "planId": "basico"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cs_test_123", body["session_id"])
	assert.Equal(t, "basico", body["plan_id"])
	require.Len(t, pay.calls, 1)
	assert.Equal(t, "basico", pay.calls[0].PlanID)

	// Replaying the same token is forbidden.
	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/checkout/session",
		map[string]string{"intentToken": token, "planId": "basico"}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "FORBIDDEN", code)
	assert.Len(t, pay.calls, 1)
}

func TestGuestCheckoutSessionTamperedToken(t *testing.T) {
	app, _ := newTestApp(t)

	_, issue := doJSON(t, app, http.MethodPost, "/api/v1/checkout/intent", map[string]string{"planId": "basico"}, nil)
	token, _ := issue["intent_token"].(string)
	require.NotEmpty(t, token)

	tampered := []byte(token)
	tampered[2] ^= 0x01
	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/session",
		map[string]string{"intentToken": string(tampered)}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestGuestCheckoutSessionWithoutToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/session", map[string]string{"planId": "basico"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestAuthenticatedCheckoutSession(t *testing.T) {
	app, pay := newTestApp(t)

	gen := jwt.NewGenerator(testJWTSecret, testIssuer, time.Hour)
	token, err := gen.Generate(context.Background(), auth.User{ID: uuid.New(), Plan: "free"})
	require.NoError(t, err)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/session",
		map[string]string{"planId": "avancado"},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "avancado", body["plan_id"])
	require.Len(t, pay.calls, 1)
	assert.Equal(t, int64(4990), pay.calls[0].AmountCents)
}

func TestCheckoutSessionRejectsInvalidBearer(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/checkout/session",
		map[string]string{"planId": "avancado"},
		map[string]string{"Authorization": "Bearer not-a-jwt"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestAnalyzeRequiresAuth(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/resume/analyze",
		map[string]string{"resumeText": "x", "jobDescription": "y"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	gen := jwt.NewGenerator(testJWTSecret, testIssuer, time.Hour)
	token, err := gen.Generate(context.Background(), auth.User{ID: uuid.New(), Plan: "avancado"})
	require.NoError(t, err)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/resume/analyze",
		map[string]string{
			"resumeText":     "Five years writing Go services backed by Postgres.",
			"jobDescription": "We need a Go developer with Postgres and Docker experience.",
		},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 70, body["score"])
}

func TestAnalyzeQuotaExhaustedReturnsPaymentRequired(t *testing.T) {
	app, _ := newTestApp(t)

	gen := jwt.NewGenerator(testJWTSecret, testIssuer, time.Hour)
	token, err := gen.Generate(context.Background(), auth.User{ID: uuid.New(), Plan: "free"})
	require.NoError(t, err)
	header := map[string]string{"Authorization": "Bearer " + token}
	payload := map[string]string{
		"resumeText":     "Go engineer.",
		"jobDescription": "Looking for a Go engineer with strong testing culture.",
	}

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/resume/analyze", payload, header)
		require.Equal(t, http.StatusOK, resp.StatusCode, "analysis %d within quota", i+1)
	}
	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/resume/analyze", payload, header)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "PAYMENT_REQUIRED", code)
}

func TestRegisterAndLogin(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": "ana@example.com", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "free", body["plan"])
	assert.NotEmpty(t, body["token"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ana@example.com", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ana@example.com", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestHealthEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}
