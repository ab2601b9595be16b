package security

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

// DefaultCSRFName is used for both the header and the cookie when none is configured.
const DefaultCSRFName = "X-CSRF-Token"

// CSRF protects cookie-authenticated requests using the double-submit technique.
// Requests carrying a bearer token are not cookie-authenticated and pass through.
// When SessionCookies is set, requests presenting none of those cookies pass
// through as well.
type CSRF struct {
	Header         string
	Secure         bool
	SameSite       http.SameSite
	Domain         string
	SessionCookies []string
}

func (c CSRF) hasSession(r *http.Request) bool {
	if len(c.SessionCookies) == 0 {
		return true
	}
	for _, name := range c.SessionCookies {
		if name == "" {
			continue
		}
		if ck, err := r.Cookie(name); err == nil && ck.Value != "" {
			return true
		}
	}
	return false
}

func (c CSRF) name() string {
	if name := strings.TrimSpace(c.Header); name != "" {
		return name
	}
	return DefaultCSRFName
}

// Issue sets a fresh CSRF cookie readable by the browser client and returns its value.
func (c CSRF) Issue(w http.ResponseWriter, ttl time.Duration) (string, error) {
	token, err := common.RandomToken(24)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  time.Now().Add(ttl),
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return token, nil
}

// Middleware enforces that unsafe requests include a token header matching the cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	name := c.name()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") || !c.hasSession(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(name))
		if token == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_MISSING", "missing csrf token", nil)
			return
		}
		cookie, err := r.Cookie(name)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_MISSING", "missing csrf cookie", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_INVALID", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
