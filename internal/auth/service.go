package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	minPasswordLength = 8
)

var (
	errInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	errInvalidRefresh     = common.NewAppError("UNAUTHORIZED", "invalid refresh token", http.StatusUnauthorized, nil)
)

// Service coordinates registration, login and session rotation.
type Service struct {
	store      Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashParams *argon2id.Params
	now        func() time.Time
	validator  TokenValidator
	issuer     string
	audience   string
	clockSkew  time.Duration
}

// Config configures the auth service.
type Config struct {
	Store           Store
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
	// HashParams overrides argon2id.DefaultParams. Tests use cheaper parameters.
	HashParams *argon2id.Params
}

// User is the public view of an account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tokens is an access/refresh pair issued by Login and Refresh.
type Tokens struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshToken  string    `json:"-"`
	RefreshExpiry time.Time `json:"-"`
}

// LoginResult bundles the user with freshly issued tokens.
type LoginResult struct {
	User User `json:"user"`
	Tokens
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "taxestimator-api"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "taxestimator-web"
	}
	clockSkew := max(cfg.ClockSkew, 0)
	params := cfg.HashParams
	if params == nil {
		params = argon2id.DefaultParams
	}

	return &Service{
		store:      cfg.Store,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		hashParams: params,
		now:        time.Now,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
			TokenUse:  tokenUseAccess,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	details := map[string]string{}
	if name == "" {
		details["name"] = "is required"
	}
	if email == "" {
		details["email"] = "is required"
	}
	if len(password) < minPasswordLength {
		details["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if len(details) > 0 {
		return User{}, common.ValidationError(details)
	}

	hash, err := argon2id.CreateHash(password, s.hashParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, name, email, hash)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, err
	}
	return user, nil
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ip string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, errInvalidCredentials
	}
	rec, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return LoginResult{}, errInvalidCredentials
		}
		return LoginResult{}, err
	}
	ok, err := argon2id.ComparePasswordAndHash(password, rec.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, errInvalidCredentials
	}

	access, accessExpiry, err := s.signAccessToken(rec.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, hash, refreshExpiry, err := s.newRefreshToken()
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.CreateSession(ctx, Session{
		UserID:    rec.ID,
		TokenHash: hash,
		UserAgent: strings.TrimSpace(userAgent),
		IP:        strings.TrimSpace(ip),
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		User: rec.User,
		Tokens: Tokens{
			AccessToken:   access,
			AccessExpiry:  accessExpiry,
			RefreshToken:  refresh,
			RefreshExpiry: refreshExpiry,
		},
	}, nil
}

// Refresh validates and rotates a refresh token. The presented token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return Tokens{}, errInvalidRefresh
	}
	hashed := common.Sha256Hex(token)
	sess, err := s.store.SessionByTokenHash(ctx, hashed)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Tokens{}, errInvalidRefresh
		}
		return Tokens{}, err
	}
	if !s.now().Before(sess.ExpiresAt) || sess.UserID == "" {
		_ = s.store.RevokeSession(ctx, hashed)
		return Tokens{}, errInvalidRefresh
	}

	access, accessExpiry, err := s.signAccessToken(sess.UserID)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, newHash, refreshExpiry, err := s.newRefreshToken()
	if err != nil {
		return Tokens{}, err
	}
	if err := s.store.RotateSession(ctx, sess.ID, newHash, refreshExpiry); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Tokens{}, errInvalidRefresh
		}
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:   access,
		AccessExpiry:  accessExpiry,
		RefreshToken:  refresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Logout revokes the session behind refreshToken. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, common.Sha256Hex(token))
}

// Me fetches the authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
		}
		return User{}, err
	}
	return user, nil
}

// ParseAccessToken validates an access token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != s.validator.Algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return parsed.Subject(), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

func (s *Service) signAccessToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(tokenUseClaim, tokenUseAccess).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func (s *Service) newRefreshToken() (token, hash string, expiresAt time.Time, err error) {
	token, err = common.RandomToken(48)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, common.Sha256Hex(token), s.now().Add(s.refreshTTL), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
