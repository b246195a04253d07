// Package metrics exposes Prometheus collectors for the processing
// pipeline. Metrics is an events.EventHandler fed by the runner and an
// attempt observer for the language-model client.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/events"
	"github.com/dimaystinov/bot-hnushka/internal/llm"
)

const namespace = "voicebot"

// Metrics holds the pipeline collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	items      *prometheus.CounterVec
	active     prometheus.Gauge
	stageDur   *prometheus.HistogramVec
	attempts   *prometheus.CounterVec
	attemptDur *prometheus.HistogramVec
}

var _ events.EventHandler = (*Metrics)(nil)

// New creates and registers the collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_finished_total",
				Help:      "Work items that reached a terminal status.",
			}, []string{"status", "category"}),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "items_active",
				Help:      "Work items currently admitted to the pipeline.",
			}),
		stageDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			}, []string{"stage"}),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Language-model provider calls by outcome.",
			}, []string{"provider", "outcome"}),
		attemptDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_attempt_duration_seconds",
				Help:      "Language-model provider call latency.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			}, []string{"provider"}),
	}

	for _, c := range []prometheus.Collector{m.items, m.active, m.stageDur, m.attempts, m.attemptDur} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HandleEvent records a status transition.
func (m *Metrics) HandleEvent(_ context.Context, e *events.ItemEvent) error {
	if e.From != domain.StatusQueued {
		m.stageDur.WithLabelValues(string(e.From)).Observe(e.Elapsed.Seconds())
	}

	if e.From == domain.StatusQueued && e.To.InFlight() {
		m.active.Inc()
	}
	if e.Terminal() {
		if e.From.InFlight() {
			m.active.Dec()
		}
		category := string(e.Category)
		if category == "" {
			category = "none"
		}
		m.items.WithLabelValues(string(e.To), category).Inc()
	}
	return nil
}

// ObserveAttempt records one provider call. It matches
// llm.ClientConfig.OnAttempt.
func (m *Metrics) ObserveAttempt(r llm.CallResult) {
	outcome := "success"
	if !r.OK() {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(r.Provider, outcome).Inc()
	m.attemptDur.WithLabelValues(r.Provider).Observe(r.Elapsed.Seconds())
}
