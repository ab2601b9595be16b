package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxestimator-api/internal/audit"
	"github.com/noah-isme/taxestimator-api/internal/auth"
	"github.com/noah-isme/taxestimator-api/internal/calculation"
	"github.com/noah-isme/taxestimator-api/internal/calculator"
	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/health"
	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/ratelimit"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
	"github.com/noah-isme/taxestimator-api/internal/security"
)

// routes groups everything the HTTP surface needs. Zero-valued optional
// pieces (metrics, limiters, pprof) are simply not mounted.
type routes struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	Headers        security.Headers
	BodyLimit      int64
	Tracing        bool
	Metrics        *obs.HTTPMetrics
	Pprof          http.Handler

	Health      health.Handler
	Calculator  calculator.Handler
	TaxLimiter  ratelimit.Allower
	AuthLimiter ratelimit.Allower

	Auth         *auth.Handler
	AuthMW       auth.Middleware
	CSRF         *security.CSRF
	Idem         common.Idem
	Calculations calculation.Handler
	Reminders    reminder.Handler
	AuditLog     audit.Handler
	Audit        audit.HTTPRecorder
}

func (d routes) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.SentryMiddleware)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.Headers.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", security.DefaultCSRFName},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: len(d.AllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.Use(security.BodyLimit{Max: d.BodyLimit}.Middleware)

	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof != nil {
		r.Mount("/debug/pprof", d.Pprof)
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	onLimitErr := func(err error) {
		d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
	}
	csrf := func(next http.Handler) http.Handler { return next }
	if d.CSRF != nil {
		csrf = d.CSRF.Middleware
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/", banner)

		v.With(ratelimit.Handler{
			Limiter: d.TaxLimiter,
			Key:     ratelimit.KeyByIP("tax"),
			OnError: onLimitErr,
		}.Middleware).Mount("/tax", d.Calculator.Routes())

		if d.Auth != nil {
			v.Route("/auth", func(a chi.Router) {
				a.Group(func(g chi.Router) {
					g.Use(ratelimit.Handler{Limiter: d.AuthLimiter, Key: ratelimit.KeyByIP("auth"), OnError: onLimitErr}.Middleware)
					g.Post("/register", d.Auth.Register)
					g.Post("/login", d.Auth.Login)
				})
				a.With(csrf).Post("/refresh", d.Auth.Refresh)
				a.With(csrf).Post("/logout", d.Auth.Logout)
				a.With(d.AuthMW.RequireAuth).Get("/me", d.Auth.Me)
			})
		}

		v.Group(func(p chi.Router) {
			p.Use(d.AuthMW.RequireAuth)
			p.Use(csrf)

			p.Route("/calculations", func(c chi.Router) {
				c.Get("/", d.Calculations.List)
				c.With(d.Idem.Middleware, d.Audit.Middleware(audit.HTTPConfig{
					Action:       "calculation.create",
					ResourceType: "calculation",
					MetadataFunc: statusMetadata,
				})).Post("/", d.Calculations.Create)
				c.With(d.Audit.Middleware(audit.HTTPConfig{
					Action:          "calculation.delete",
					ResourceType:    "calculation",
					ResourceIDParam: "id",
				})).Delete("/{id}", d.Calculations.Delete)
			})

			p.Route("/reminders", func(rm chi.Router) {
				rm.Get("/", d.Reminders.List)
				rm.With(d.Audit.Middleware(audit.HTTPConfig{
					Action:       "reminder.create",
					ResourceType: "reminder",
					MetadataFunc: statusMetadata,
				})).Post("/", d.Reminders.Create)
				update := d.Audit.Middleware(audit.HTTPConfig{
					Action:          "reminder.update",
					ResourceType:    "reminder",
					ResourceIDParam: "id",
				})
				rm.With(update).Put("/{id}", d.Reminders.Update)
				rm.With(update).Patch("/{id}", d.Reminders.Update)
				rm.With(d.Audit.Middleware(audit.HTTPConfig{
					Action:          "reminder.delete",
					ResourceType:    "reminder",
					ResourceIDParam: "id",
				})).Delete("/{id}", d.Reminders.Delete)
			})

			p.Get("/audit-logs", d.AuditLog.List)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func banner(w http.ResponseWriter, _ *http.Request) {
	common.Message(w, "Nigerian Tax Estimator API")
}

func statusMetadata(r *http.Request, status int) map[string]any {
	meta := map[string]any{"succeeded": status < http.StatusBadRequest}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		meta["idempotency_key"] = key
	}
	return meta
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

// basicAuth guards h with a fixed credential. An empty user disables the check.
func basicAuth(h http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	if user == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="restricted"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}
