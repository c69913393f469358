package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/adapters/memory"
	"github.com/viralforge/stakeshare/internal/adapters/security"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

const (
	testWebhookSecret = "whsec_router_test"
	testJWTSecret     = "router-test-secret-0123456789"
)

type testEnv struct {
	server   *httptest.Server
	repos    *memory.Repositories
	verifier *security.HMACVerifier
}

func newTestEnv(t *testing.T, limiter ports.ClickLimiter) *testEnv {
	t.Helper()
	repos := memory.NewRepositories()
	repos.Directory.PutProgram(domain.Program{
		ProgramID:             "prog-1",
		CompanyID:             "company-1",
		FounderID:             "founder-1",
		RevenueShareEnabled:   true,
		RevenueSharePercent:   decimal.NewFromInt(10),
		CompanyValuationCents: 50_000_000,
		Currency:              "USD",
	})
	repos.Directory.PutCreator(domain.Creator{CreatorID: "creator-1", PayoutAccountID: "acct_1"})
	repos.Directory.PutContract(domain.Contract{
		ContractID:    "contract-1",
		CreatorID:     "creator-1",
		FounderID:     "founder-1",
		ProgramID:     "prog-1",
		StartDate:     time.Now().UTC().AddDate(-1, 0, 0),
		TotalMonths:   24,
		EquityPercent: decimal.NewFromInt(2),
	})
	require.NoError(t, repos.Links.Create(context.Background(), domain.TrackingLink{
		LinkID:         "link-1",
		CreatorID:      "creator-1",
		ProgramID:      "prog-1",
		ReferralCode:   "ABCD2345",
		DestinationURL: "https://shop.example.com/landing",
		CreatedAt:      time.Now().UTC(),
	}, ports.OutboxEvent{EventType: domain.EventLinkCreated, OccurredAt: time.Now().UTC()}))

	svc := application.NewService(application.Dependencies{
		Links:        repos.Links,
		Conversions:  repos.Conversions,
		Settlements:  repos.Settlements,
		Payouts:      repos.Payouts,
		Terminations: repos.Terminations,
		Programs:     repos.Directory,
		Creators:     repos.Directory,
		Contracts:    repos.Directory,
		Attribution:  memory.NewAttributionStore(func() time.Time { return time.Now().UTC() }),
	})
	verifier, err := security.NewHMACVerifier(testJWTSecret, "", "")
	require.NoError(t, err)

	handler := NewHandler(svc, Options{
		WebhookSecret: testWebhookSecret,
		Limiter:       limiter,
		Verifier:      verifier,
	})
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return &testEnv{server: server, repos: repos, verifier: verifier}
}

func (e *testEnv) token(t *testing.T, subject, role string) string {
	t.Helper()
	now := time.Now()
	raw, err := e.verifier.Sign(security.Claims{Subject: subject, Role: role, ExpiresAt: now.Add(time.Hour)}, now)
	require.NoError(t, err)
	return raw
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) webhook(t *testing.T, payload []byte, signature string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/referral/v1/webhooks/conversions", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return data
}

func TestRedirectSetsAttributionCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/r/abcd2345?utm_source=newsletter", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://shop.example.com/landing", resp.Header.Get("Location"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == attributionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.WithinDuration(t, time.Now().Add(domain.AttributionWindow), cookie.Expires, time.Minute)

	link, err := env.repos.Links.GetByCode(context.Background(), "ABCD2345")
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.ClickCount)
}

func TestRedirectUnknownCode(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/r/ZZZZ9999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestClickRateLimited(t *testing.T) {
	env := newTestEnv(t, NewKeyedLimiter(60, 1))

	resp, _ := env.do(t, http.MethodPost, "/referral/v1/clicks", "", map[string]string{"ref": "ABCD2345"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/referral/v1/clicks", "", map[string]string{"ref": "ABCD2345"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}

func TestWebhookAttributesThroughClickCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/referral/v1/clicks", "", map[string]string{"ref": "ABCD2345"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	clientID, _ := dataOf(t, body)["client_id"].(string)
	require.NotEmpty(t, clientID)

	payload := []byte(`{"customerEmail":"Buyer@Example.com","revenueAmount":25000,"companyId":"company-1","orderId":"order-1","conversionType":"purchase","clientId":"` + clientID + `"}`)
	resp, body = env.webhook(t, payload, security.SignPayload(testWebhookSecret, payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataOf(t, body)
	assert.Equal(t, true, data["attributed"])
	assert.Equal(t, false, data["duplicate"])

	resp, body = env.webhook(t, payload, security.SignPayload(testWebhookSecret, payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, dataOf(t, body)["duplicate"])
	assert.Equal(t, 1, env.repos.Conversions.Count())
}

func TestWebhookUnattributedStillSucceeds(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := []byte(`{"referralCode":"NOPE2345","customerEmail":"a@b.co","revenueAmount":1000,"companyId":"company-1","conversionType":"purchase"}`)

	resp, body := env.webhook(t, payload, security.SignPayload(testWebhookSecret, payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, dataOf(t, body)["attributed"])

	resp, body = env.do(t, http.MethodGet, "/referral/v1/operator/unattributed", env.token(t, "ops-1", "admin"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items, _ := dataOf(t, body)["items"].([]any)
	assert.Len(t, items, 1)
}

func TestWebhookRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := []byte(`{"referralCode":"ABCD2345","customerEmail":"a@b.co","revenueAmount":1000,"companyId":"company-1","conversionType":"purchase"}`)

	resp, body := env.webhook(t, payload, "sha256=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	malformed := []byte(`{"referralCode":`)
	resp, body = env.webhook(t, malformed, security.SignPayload(testWebhookSecret, malformed))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	missingAmount := []byte(`{"referralCode":"ABCD2345","customerEmail":"a@b.co","companyId":"company-1","conversionType":"purchase"}`)
	resp, _ = env.webhook(t, missingAmount, security.SignPayload(testWebhookSecret, missingAmount))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthenticatedRoutesRequireBearer(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/referral/v1/links?program_id=prog-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	resp, _ = env.do(t, http.MethodGet, "/referral/v1/links?program_id=prog-1", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLinkGenerationAndListing(t *testing.T) {
	env := newTestEnv(t, nil)
	creator := env.token(t, "creator-1", "creator")

	resp, body := env.do(t, http.MethodPost, "/referral/v1/links", creator, map[string]string{
		"program_id":      "prog-1",
		"destination_url": "https://shop.example.com/spring",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code, _ := dataOf(t, body)["referral_code"].(string)
	assert.Len(t, code, domain.ReferralCodeLength)

	resp, body = env.do(t, http.MethodGet, "/referral/v1/links?program_id=prog-1", creator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items, _ := dataOf(t, body)["items"].([]any)
	assert.Len(t, items, 2)

	resp, _ = env.do(t, http.MethodGet, "/referral/v1/links/"+code, creator, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTerminationFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	creator := env.token(t, "creator-1", "creator")
	founder := env.token(t, "founder-1", "founder")

	resp, body := env.do(t, http.MethodPost, "/referral/v1/terminations", creator, map[string]string{
		"contract_id": "contract-1",
		"reason":      "moving on",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := dataOf(t, body)
	requestID, _ := data["request_id"].(string)
	require.NotEmpty(t, requestID)
	assert.Equal(t, "pending", data["status"])

	resp, body = env.do(t, http.MethodPost, "/referral/v1/terminations/"+requestID+"/approve", creator, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	resp, body = env.do(t, http.MethodPost, "/referral/v1/terminations/"+requestID+"/approve", founder, map[string]string{"note": "agreed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", dataOf(t, body)["status"])

	resp, _ = env.do(t, http.MethodPost, "/referral/v1/terminations/"+requestID+"/cancel", creator, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/referral/v1/terminations/"+requestID+"/audit", founder, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items, _ := dataOf(t, body)["items"].([]any)
	assert.Len(t, items, 2)

	payout, err := env.repos.Payouts.GetByKey(context.Background(), domain.TerminationPayoutKey(requestID))
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	resp, _ = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
