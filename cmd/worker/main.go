package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/config"
	"github.com/noah-isme/taxestimator-api/internal/db"
	"github.com/noah-isme/taxestimator-api/internal/lock"
	"github.com/noah-isme/taxestimator-api/internal/notify"
	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
	"github.com/noah-isme/taxestimator-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("component", "worker").Str("env", cfg.AppEnv).Logger()

	namespace := envOrDefault("OBS_METRICS_NAMESPACE", "taxestimator")
	obs.MustRegisterDomainMetrics(namespace, nil)
	resilience.MustRegisterMetrics(namespace, nil)

	if envBool("OBS_ENABLE_TRACING", true) {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "taxestimator-worker",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}
	flushSentry, err := obs.InitSentry(obs.SentryConfig{DSN: cfg.SentryDSN, Environment: cfg.AppEnv}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("initialise sentry")
	} else {
		defer flushSentry()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.Connect(startCtx, cfg.DatabaseURL, "taxestimator-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient := mustInitRedis(startCtx, cfg.RedisURL, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}
	client := asynq.NewClient(redisOpt)
	defer func() { _ = client.Close() }()

	store := reminder.PGStore{DB: pool}
	scanner := &notify.Scanner{
		Store:     store,
		Queue:     client,
		Locker:    lock.Locker{R: redisClient, Prefix: "lock:"},
		LockTTL:   cfg.LockTTL,
		Lookahead: cfg.ReminderLookahead,
		Batch:     cfg.ReminderScanBatch,
		Logger:    logger,
	}
	notifier := &notify.Notifier{
		Store:    store,
		Channels: channels(cfg, logger),
		Deliveries: notify.RedisDeliveryLog{
			Client: redisClient,
			Prefix: "reminder-delivered:",
		},
		Logger: logger,
	}

	asynqLogger := notify.AsynqLogger{Logger: logger}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: max(cfg.WorkerConcurrency, 1),
		Queues:      map[string]int{notify.QueueDefault: 1},
		Logger:      asynqLogger,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				obs.CaptureError(err, map[string]string{"task_type": task.Type()})
			}
		}),
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: asynqLogger, Location: time.UTC})
	if _, err := scheduler.Register(cfg.ReminderScanCron, notify.NewScanTask()); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.ReminderScanCron).Msg("register reminder scan")
	}

	if err := server.Start(notify.NewMux(scanner, notifier, logger)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Str("scan_cron", cfg.ReminderScanCron).Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
	scheduler.Shutdown()
	server.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func channels(cfg *config.Config, logger zerolog.Logger) []notify.Channel {
	var sender common.EmailSender = common.LogEmailSender{Logger: logger}
	if !cfg.NotifyEmailEnabled {
		sender = common.NopEmailSender{}
	}
	out := []notify.Channel{notify.EmailChannel{Sender: sender, From: cfg.NotifyEmailFrom}}
	if cfg.NotifyWebhookURL != "" {
		hook, err := notify.NewWebhookChannel(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, envDurationMillis("NOTIFY_WEBHOOK_TIMEOUT_MS", 5000))
		if err != nil {
			logger.Fatal().Err(err).Msg("configure reminder webhook")
		}
		hook.HTTP.Breaker.WithLogger(logger)
		out = append(out, hook)
	}
	return out
}

func mustInitRedis(ctx context.Context, url string, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
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
