package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// TaxComputationsTotal counts engine invocations by kind (personal, payroll, business, relief).
	TaxComputationsTotal *prometheus.CounterVec
	// TaxComputationDuration records engine latency in milliseconds.
	TaxComputationDuration *prometheus.HistogramVec
	// CalculationsSavedTotal counts persisted calculations by calc type.
	CalculationsSavedTotal *prometheus.CounterVec
	// ReminderNotificationsTotal counts reminder notification outcomes.
	ReminderNotificationsTotal *prometheus.CounterVec
	// ReminderScanDue records how many due reminders each scan found.
	ReminderScanDue prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TaxComputationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_computations_total",
			Help:      "Count of tax computations by kind and outcome.",
		}, []string{"kind", "outcome"}))
		TaxComputationDuration = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tax_computation_duration_ms",
			Help:      "Tax engine latency in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}))
		CalculationsSavedTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_saved_total",
			Help:      "Count of saved calculations by calc type.",
		}, []string{"calc_type"}))
		ReminderNotificationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_notifications_total",
			Help:      "Count of reminder notification outcomes.",
		}, []string{"result"}))
		ReminderScanDue = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_scan_due",
			Help:      "Number of due reminders found per scan.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}))
	})
}

// ObserveTaxComputation is safe to call before MustRegisterDomainMetrics.
func ObserveTaxComputation(kind, outcome string, millis float64) {
	if TaxComputationsTotal != nil {
		TaxComputationsTotal.WithLabelValues(kind, outcome).Inc()
	}
	if TaxComputationDuration != nil && outcome == "ok" {
		TaxComputationDuration.WithLabelValues(kind).Observe(millis)
	}
}

// IncCalculationsSaved is safe to call before MustRegisterDomainMetrics.
func IncCalculationsSaved(calcType string) {
	if CalculationsSavedTotal != nil {
		CalculationsSavedTotal.WithLabelValues(calcType).Inc()
	}
}

// IncReminderNotification is safe to call before MustRegisterDomainMetrics.
func IncReminderNotification(result string) {
	if ReminderNotificationsTotal != nil {
		ReminderNotificationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReminderScan is safe to call before MustRegisterDomainMetrics.
func ObserveReminderScan(due int) {
	if ReminderScanDue != nil {
		ReminderScanDue.Observe(float64(due))
	}
}

// registerOrReuse registers c, returning the already registered collector of the
// same type when an identical one exists.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}
