package resilience

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts state changes by target, from and to.
	BreakerTransitions *prometheus.CounterVec
	// OutboundAttempts counts guarded HTTP attempts by target and outcome.
	OutboundAttempts *prometheus.CounterVec
)

// MustRegisterMetrics creates and registers the breaker collectors once.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"target", "from", "to"})
		OutboundAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_http_attempts_total",
			Help:      "Outbound HTTP attempts by target and outcome.",
		}, []string{"target", "outcome"})
		for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, OutboundAttempts} {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}

func setStateGauge(target string, s State) {
	if BreakerState == nil {
		return
	}
	v := float64(s)
	if s != Closed && s != Open && s != HalfOpen {
		v = -1
	}
	BreakerState.WithLabelValues(target).Set(v)
}

func recordTransition(target string, from, to State) {
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	}
}

func countAttempt(target, outcome string) {
	if OutboundAttempts != nil {
		OutboundAttempts.WithLabelValues(target, outcome).Inc()
	}
}
