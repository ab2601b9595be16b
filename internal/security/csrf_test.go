package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	handler := CSRF{}.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "CSRF_MISSING")
}

func TestCSRFIssuedTokenIsAccepted(t *testing.T) {
	csrf := CSRF{Header: DefaultCSRFName}
	issue := httptest.NewRecorder()
	token, err := csrf.Issue(issue, time.Hour)
	require.NoError(t, err)
	cookies := issue.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set(DefaultCSRFName, token)
	req.AddCookie(cookies[0])
	rr := httptest.NewRecorder()
	csrf.Middleware(okHandler(http.StatusNoContent)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCSRFMiddlewareRejectsMismatch(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set(DefaultCSRFName, "a")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFName, Value: "b"})
	rr := httptest.NewRecorder()
	CSRF{}.Middleware(okHandler(http.StatusOK)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "CSRF_INVALID")
}

func TestCSRFMiddlewareSkipsBearerAndSafeMethods(t *testing.T) {
	handler := CSRF{}.Middleware(okHandler(http.StatusAccepted))

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestCSRFMiddlewareOnlyChecksSessionRequests(t *testing.T) {
	handler := CSRF{SessionCookies: []string{"refresh_token"}}.Middleware(okHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "no session cookie, nothing to forge")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "r"})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
