package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process-wide readiness flag. The API clears it when
// shutdown begins so load balancers drain traffic before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// IsReady reports the current readiness flag.
func IsReady() bool { return ready.Load() }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
	// RulesName is reported so operators can see which tax rule set is loaded.
	RulesName string
}

type readyResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Redis  string `json:"redis"`
	Rules  string `json:"rules,omitempty"`
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !IsReady() {
		common.JSON(w, http.StatusServiceUnavailable, readyResponse{Status: "shutting_down", DB: "skipped", Redis: "skipped", Rules: h.RulesName})
		return
	}
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", DB: "unconfigured", Redis: "unconfigured"})
		return
	}
	ctx := r.Context()
	resp := readyResponse{Status: "ok", DB: "ok", Redis: "ok", Rules: h.RulesName}
	if err := h.Checker.PingDB(ctx, durationOr(h.DBTimeout, 500*time.Millisecond)); err != nil {
		resp.DB = err.Error()
		resp.Status = "degraded"
	}
	if err := h.Checker.PingRedis(ctx, durationOr(h.RedisTimeout, 300*time.Millisecond)); err != nil {
		resp.Redis = err.Error()
		resp.Status = "degraded"
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, resp)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
