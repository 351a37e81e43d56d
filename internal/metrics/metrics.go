// Package metrics provides observability for authentication flows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts flow activity. All methods are nil-safe so callers can run
// without metrics wired.
type Metrics struct {
	// Flows started, by completion strategy.
	FlowStarted *prometheus.CounterVec

	// Flow outcomes by strategy and result ("success", "denied", "csrf",
	// "exchange_failed", "network", "expired").
	FlowOutcome *prometheus.CounterVec

	// Token endpoint call latency by grant ("authorization_code",
	// "refresh_token").
	ExchangeLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		FlowStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bexio_auth_flows_started_total",
			Help: "Authorization flows initiated, by completion strategy",
		}, []string{"strategy"}),

		FlowOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bexio_auth_flow_outcomes_total",
			Help: "Authorization flow outcomes by strategy and result",
		}, []string{"strategy", "outcome"}),

		ExchangeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bexio_auth_token_call_duration_seconds",
			Help:    "Duration of token endpoint calls by grant type",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"grant"}),
	}
}

// IncStarted records a flow initiation.
func (m *Metrics) IncStarted(strategy string) {
	if m != nil {
		m.FlowStarted.WithLabelValues(strategy).Inc()
	}
}

// IncOutcome records a flow outcome.
func (m *Metrics) IncOutcome(strategy, outcome string) {
	if m != nil {
		m.FlowOutcome.WithLabelValues(strategy, outcome).Inc()
	}
}

// ObserveExchange records a token endpoint call duration.
func (m *Metrics) ObserveExchange(grant string, d time.Duration) {
	if m != nil {
		m.ExchangeLatency.WithLabelValues(grant).Observe(d.Seconds())
	}
}
