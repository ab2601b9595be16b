package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxestimator-api/internal/audit"
	"github.com/noah-isme/taxestimator-api/internal/auth"
	"github.com/noah-isme/taxestimator-api/internal/cache"
	"github.com/noah-isme/taxestimator-api/internal/calculation"
	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/config"
	"github.com/noah-isme/taxestimator-api/internal/db"
	"github.com/noah-isme/taxestimator-api/internal/health"
	"github.com/noah-isme/taxestimator-api/internal/migrations"
	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/ratelimit"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
	"github.com/noah-isme/taxestimator-api/internal/security"
	"github.com/noah-isme/taxestimator-api/internal/tax"
)

const serviceName = "taxestimator-api"

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("component", "api").Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "taxestimator")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	flushSentry, err := obs.InitSentry(obs.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     envOrDefault("APP_RELEASE", ""),
		SampleRate:  envFloat("SENTRY_SAMPLE_RATE", 1.0),
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("initialise sentry")
	} else {
		defer flushSentry()
	}

	engine, err := loadEngine(cfg.TaxRulesFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("load tax rules")
	}
	logger.Info().Str("rules", engine.Rules().Name).Msg("tax rules loaded")

	if cfg.MigrateOnStart {
		version, err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Uint("version", version).Msg("database migrated")
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(startCtx, cfg.DatabaseURL, serviceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient := mustInitRedis(startCtx, cfg, metricsEnabled, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	authService, err := auth.NewService(auth.Config{
		Store:           auth.PGStore{DB: pool},
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	csrf := &security.CSRF{
		Secure:         cfg.CookieSecure,
		SameSite:       cfg.CookieSameSite,
		Domain:         cfg.CookieDomain,
		SessionCookies: []string{cfg.RefreshCookieName},
	}

	taxLimiter, err := ratelimit.NewFixed(redisClient, "rl:tax", cfg.RateLimitTax)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise tax rate limiter")
	}

	calc := calculator.New(engine)
	auditStore := audit.PGStore{DB: pool}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}
	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		pprofHandler = basicAuth(newPprofMux(), envOrDefault("PPROF_BASIC_AUTH_USER", ""), envOrDefault("PPROF_BASIC_AUTH_PASS", ""))
	}

	handler := routes{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Headers:        security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.IsProduction(), HSTSMaxAge: 31536000},
		BodyLimit:      cfg.BodyLimitBytes,
		Tracing:        tracingEnabled,
		Metrics:        httpMetrics,
		Pprof:          pprofHandler,

		Health: health.Handler{
			Checker:      readinessChecker{pool: pool, redis: redisClient},
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
			RulesName:    engine.Rules().Name,
		},
		Calculator: calculator.Handler{Calc: calc},
		TaxLimiter: taxLimiter,
		AuthLimiter: ratelimit.Limiter{
			Client: redisClient,
			Prefix: "rl:auth:",
			Window: cfg.RateLimitAuthWindow,
			Max:    cfg.RateLimitAuthMax,
		},

		Auth: &auth.Handler{
			Service:           authService,
			RefreshCookieName: cfg.RefreshCookieName,
			CookieDomain:      cfg.CookieDomain,
			CookieSecure:      cfg.CookieSecure,
			CookieSameSite:    cfg.CookieSameSite,
			CSRF:              csrf,
		},
		AuthMW: auth.Middleware{Service: authService},
		CSRF:   csrf,
		Idem:   common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		Calculations: calculation.Handler{Service: &calculation.Service{
			Store:   calculation.PGStore{DB: pool},
			Calc:    calc,
			Cache:   cache.New(redisClient, cfg.CalculationsCacheTTL),
			MaxList: cfg.CalculationsMaxList,
			Logger:  logger,
		}},
		Reminders: reminder.Handler{Service: &reminder.Service{Store: reminder.PGStore{DB: pool}}},
		AuditLog:  audit.Handler{Store: auditStore},
		Audit: audit.HTTPRecorder{
			Service: &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate},
			OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
		},
	}.handler()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func loadEngine(path string) (*tax.Engine, error) {
	if strings.TrimSpace(path) == "" {
		return tax.MustDefaultEngine(), nil
	}
	return tax.LoadEngine(path)
}

func mustInitRedis(ctx context.Context, cfg *config.Config, metrics bool, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

type pinger interface {
	Ping(ctx context.Context) error
}

type readinessChecker struct {
	pool  pinger
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.pool == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.pool.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	n := fallback
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			n = parsed
		}
	}
	return time.Duration(n) * time.Millisecond
}
