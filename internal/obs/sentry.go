package obs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

// SentryConfig controls error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// InitSentry initialises the global Sentry client and returns a flush function
// to run on shutdown.
func InitSentry(cfg SentryConfig, logger zerolog.Logger) (func(), error) {
	if cfg.DSN == "" {
		logger.Debug().Msg("sentry disabled")
		return func() {}, nil
	}
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.DSN,
		Environment:   cfg.Environment,
		Release:       cfg.Release,
		SampleRate:    rate,
		HTTPTransport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}
	logger.Info().Str("environment", cfg.Environment).Float64("sample_rate", rate).Msg("sentry initialised")
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// SentryMiddleware binds a hub clone to each request so common.WriteError can
// report 5xx errors with request and user context. Panics are captured and re-raised
// for the outer recoverer.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sentry.CurrentHub().Client() == nil {
			next.ServeHTTP(w, r)
			return
		}
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(r)
		if id, ok := common.UserID(r.Context()); ok {
			hub.Scope().SetUser(sentry.User{ID: id})
		}
		defer func() {
			if rec := recover(); rec != nil {
				hub.RecoverWithContext(r.Context(), rec)
				panic(rec)
			}
		}()
		next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
	})
}

// CaptureError reports err outside of a request, e.g. from background jobs.
func CaptureError(err error, tags map[string]string) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}
