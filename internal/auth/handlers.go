package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/security"
)

// Handler exposes HTTP handlers for authentication and account endpoints.
type Handler struct {
	Service           *Service
	AccessCookieName  string
	RefreshCookieName string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
	// CSRF, when set, issues a double-submit token on login and refresh.
	CSRF *security.CSRF
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	if appErr := common.ValidateStruct(req); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	user, err := h.Service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": user})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if appErr := common.DecodeJSON(r, &req); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	if appErr := common.ValidateStruct(req); appErr != nil {
		common.WriteError(w, r, appErr)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Email, req.Password, r.UserAgent(), common.ClientIP(r))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	h.setAuthCookies(w, result.Tokens)
	data := map[string]any{
		"user":              result.User,
		"access_token":      result.AccessToken,
		"access_expires_at": result.AccessExpiry,
	}
	if h.RefreshCookieName == "" {
		data["refresh_token"] = result.RefreshToken
	}
	if token, ok := h.issueCSRF(w, result.RefreshExpiry); ok {
		data["csrf_token"] = token
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}

// Refresh handles POST /api/v1/auth/refresh. The token comes from the cookie or the body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFromRequest(r)
	if token == "" {
		var req refreshRequest
		if r.ContentLength != 0 {
			if appErr := common.DecodeJSON(r, &req); appErr != nil {
				common.WriteError(w, r, appErr)
				return
			}
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	tokens, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		h.clearAuthCookies(w)
		common.WriteError(w, r, err)
		return
	}
	h.setAuthCookies(w, tokens)
	data := map[string]any{
		"access_token":      tokens.AccessToken,
		"access_expires_at": tokens.AccessExpiry,
	}
	if h.RefreshCookieName == "" {
		data["refresh_token"] = tokens.RefreshToken
	}
	if csrf, ok := h.issueCSRF(w, tokens.RefreshExpiry); ok {
		data["csrf_token"] = csrf
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.refreshTokenFromRequest(r)
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if appErr := common.DecodeJSON(r, &req); appErr == nil {
			token = req.RefreshToken
		}
	}
	if err := h.Service.Logout(r.Context(), token); err != nil {
		common.WriteError(w, r, err)
		return
	}
	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	user, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}

func (h *Handler) issueCSRF(w http.ResponseWriter, until time.Time) (string, bool) {
	if h.CSRF == nil {
		return "", false
	}
	token, err := h.CSRF.Issue(w, time.Until(until))
	if err != nil {
		return "", false
	}
	return token, true
}

func (h *Handler) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   h.CookieDomain,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	return c
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, tokens Tokens) {
	if h.AccessCookieName != "" {
		http.SetCookie(w, h.cookie(h.AccessCookieName, tokens.AccessToken, tokens.AccessExpiry))
	}
	if h.RefreshCookieName != "" {
		http.SetCookie(w, h.cookie(h.RefreshCookieName, tokens.RefreshToken, tokens.RefreshExpiry))
	}
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	if h.AccessCookieName != "" {
		http.SetCookie(w, h.cookie(h.AccessCookieName, "", time.Time{}))
	}
	if h.RefreshCookieName != "" {
		http.SetCookie(w, h.cookie(h.RefreshCookieName, "", time.Time{}))
	}
}

func (h *Handler) refreshTokenFromRequest(r *http.Request) string {
	if h.RefreshCookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(h.RefreshCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
