// Package metrics provides Prometheus observability for the check
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the check pipeline's Prometheus collectors.
type Metrics struct {
	// Check outcomes by status and jurisdiction
	CheckOutcome *prometheus.CounterVec

	// Per-provider call latency
	ProviderLatency *prometheus.HistogramVec

	// Provider failures after retries, by provider
	ProviderErrors *prometheus.CounterVec

	// Full check latency including both provider calls
	CheckLatency prometheus.Histogram

	// Jurisdiction config reloads by result
	RuleReloads *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		CheckOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_check_outcomes_total",
			Help: "Total check outcomes by status and jurisdiction",
		}, []string{"status", "jurisdiction"}),

		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumina_provider_duration_seconds",
			Help:    "Duration of external provider calls by provider",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}), // provider: "kyc", "aml"

		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_provider_errors_total",
			Help: "Provider calls that failed after retries, by provider",
		}, []string{"provider"}),

		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lumina_check_duration_seconds",
			Help:    "Duration of a full compliance check",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		RuleReloads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lumina_rule_reloads_total",
			Help: "Jurisdiction config reloads by result",
		}, []string{"result"}), // result: "ok", "error"
	}
}

// IncrementOutcome records a check outcome.
func (m *Metrics) IncrementOutcome(status, jurisdiction string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(status, jurisdiction).Inc()
	}
}

// ObserveProviderLatency records one provider call's duration.
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementProviderError records a provider failure after retries.
func (m *Metrics) IncrementProviderError(provider string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(provider).Inc()
	}
}

// ObserveCheckLatency records a full check's duration.
func (m *Metrics) ObserveCheckLatency(d time.Duration) {
	if m != nil {
		m.CheckLatency.Observe(d.Seconds())
	}
}

// IncrementReload records a jurisdiction config reload.
func (m *Metrics) IncrementReload(result string) {
	if m != nil {
		m.RuleReloads.WithLabelValues(result).Inc()
	}
}
