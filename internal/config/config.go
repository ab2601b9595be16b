package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RefreshCookieName  string
	CookieDomain       string
	CookieSecure       bool
	CookieSameSite     http.SameSite

	TaxRulesFile         string
	IdempotencyTTL       time.Duration
	CalculationsCacheTTL time.Duration
	CalculationsMaxList  int

	RateLimitTax        string
	RateLimitAuthMax    int
	RateLimitAuthWindow time.Duration
	BodyLimitBytes      int64
	SecurityHeaders     bool

	AuditEnabled      bool
	AuditSamplingRate float64
	MigrateOnStart    bool

	ReminderScanCron    string
	ReminderLookahead   time.Duration
	ReminderScanBatch   int
	WorkerConcurrency   int
	NotifyEmailEnabled  bool
	NotifyEmailFrom     string
	NotifyWebhookURL    string
	NotifyWebhookSecret string
	LockTTL             time.Duration

	SentryDSN string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		RefreshTokenTTL:    parseDuration(k.String("REFRESH_TOKEN_TTL"), "720h"),
		RefreshCookieName:  valueOrDefault(k.String("REFRESH_COOKIE_NAME"), "refresh_token"),
		CookieDomain:       strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE"), false),
		CookieSameSite:     parseSameSite(k.String("COOKIE_SAMESITE")),

		TaxRulesFile:         strings.TrimSpace(k.String("TAX_RULES_FILE")),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CalculationsCacheTTL: parseDuration(k.String("CALCULATIONS_CACHE_TTL"), "5m"),
		CalculationsMaxList:  parseInt(k.String("CALCULATIONS_MAX_LIST"), 100),

		RateLimitTax:        valueOrDefault(k.String("RATE_LIMIT_TAX"), "120-M"),
		RateLimitAuthMax:    parseInt(k.String("RATE_LIMIT_AUTH_MAX"), 10),
		RateLimitAuthWindow: parseDuration(k.String("RATE_LIMIT_AUTH_WINDOW"), "1m"),
		BodyLimitBytes:      int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:     parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),

		AuditEnabled:      parseBool(k.String("AUDIT_ENABLED"), true),
		AuditSamplingRate: parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
		MigrateOnStart:    parseBool(k.String("DB_MIGRATE_ON_START"), false),

		ReminderScanCron:    valueOrDefault(k.String("REMINDER_SCAN_CRON"), "@every 15m"),
		ReminderLookahead:   parseDuration(k.String("REMINDER_LOOKAHEAD"), "72h"),
		ReminderScanBatch:   parseInt(k.String("REMINDER_SCAN_BATCH"), 200),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailEnabled:  parseBool(k.String("NOTIFY_EMAIL_ENABLED"), false),
		NotifyEmailFrom:     valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "reminders@taxestimator.local"),
		NotifyWebhookURL:    strings.TrimSpace(k.String("NOTIFY_WEBHOOK_URL")),
		NotifyWebhookSecret: k.String("NOTIFY_WEBHOOK_SECRET"),
		LockTTL:             parseDuration(k.String("LOCK_TTL"), "2m"),

		SentryDSN: strings.TrimSpace(k.String("SENTRY_DSN")),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.CalculationsMaxList <= 0 || cfg.CalculationsMaxList > 100 {
		cfg.CalculationsMaxList = 100
	}
	if cfg.AuditSamplingRate < 0 || cfg.AuditSamplingRate > 1 {
		cfg.AuditSamplingRate = 1
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.NotifyWebhookURL != "" && cfg.NotifyWebhookSecret == "" {
		return nil, errors.New("NOTIFY_WEBHOOK_SECRET is required when NOTIFY_WEBHOOK_URL is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "production" || env == "prod"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
