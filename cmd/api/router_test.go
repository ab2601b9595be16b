package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxestimator-api/internal/auth"
	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/health"
	"github.com/noah-isme/taxestimator-api/internal/ratelimit"
	"github.com/noah-isme/taxestimator-api/internal/security"
	"github.com/noah-isme/taxestimator-api/internal/tax"
)

type staticLimiter struct{ allowed bool }

func (l staticLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: l.allowed, Limit: 1, ResetAt: time.Now().Add(time.Minute)}, nil
}

type rejectingParser struct{}

func (rejectingParser) ParseAccessToken(string) (string, error) {
	return "", errors.New("invalid token")
}

type okChecker struct{}

func (okChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (okChecker) PingRedis(context.Context, time.Duration) error { return nil }

func testRouter(t *testing.T, limiter ratelimit.Allower) http.Handler {
	t.Helper()
	return routes{
		Logger:     zerolog.Nop(),
		Headers:    security.Headers{Enable: true},
		BodyLimit:  1 << 16,
		Health:     health.Handler{Checker: okChecker{}, RulesName: "ng-pita-cita"},
		Calculator: calculator.Handler{Calc: calculator.New(tax.MustDefaultEngine())},
		TaxLimiter: limiter,
		AuthMW:     auth.Middleware{Service: rejectingParser{}},
	}.handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBanner(t *testing.T) {
	rr := do(t, testRouter(t, nil), http.MethodGet, "/api/v1/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Nigerian Tax Estimator API"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestTaxRoutesAreMounted(t *testing.T) {
	rr := do(t, testRouter(t, staticLimiter{allowed: true}), http.MethodPost, "/api/v1/tax/personal", `{"annual_income":"5000000"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Data struct {
			FinalTax decimal.Decimal `json:"final_tax"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, decimal.RequireFromString("704000").Equal(body.Data.FinalTax), body.Data.FinalTax.String())
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
}

func TestTaxRoutesRateLimited(t *testing.T) {
	rr := do(t, testRouter(t, staticLimiter{allowed: false}), http.MethodGet, "/api/v1/tax/rules", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := testRouter(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/calculations"},
		{http.MethodPost, "/api/v1/calculations"},
		{http.MethodDelete, "/api/v1/calculations/abc"},
		{http.MethodGet, "/api/v1/reminders"},
		{http.MethodPatch, "/api/v1/reminders/abc"},
		{http.MethodGet, "/api/v1/audit-logs"},
	} {
		rr := do(t, h, tc.method, tc.path, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.method+" "+tc.path)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	h := testRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"rules":"ng-pita-cita"`)

	rr = do(t, h, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOT_FOUND")
}

func TestBasicAuth(t *testing.T) {
	h := basicAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }), "ops", "pw")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("ops", "pw")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
