// Package metrics provides the prometheus collectors shared by the relayer services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metrics collectors for the application.
type Metrics struct {
	// Registry is the Prometheus registry for all metrics.
	Registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	JobsTotal     *prometheus.CounterVec
	JobsInFlight  prometheus.Gauge
	StageDuration *prometheus.HistogramVec

	DependencyErrors *prometheus.CounterVec
	SenderBalanceOK  prometheus.Gauge
}

// Config holds the configuration for metrics.
type Config struct {
	Namespace   string
	ServiceName string
}

// New creates a new metrics collector with the given configuration.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	constLabels := prometheus.Labels{"service": cfg.ServiceName}

	return &Metrics{
		Registry: registry,

		RequestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Name:        "request_total",
				Help:        "Total number of HTTP requests received",
				ConstLabels: constLabels,
			},
			[]string{"method", "path", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   cfg.Namespace,
				Name:        "request_duration_seconds",
				Help:        "HTTP request duration in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "path"},
		),

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Subsystem:   "job",
				Name:        "total",
				Help:        "Jobs that reached a terminal status",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),

		JobsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   cfg.Namespace,
				Subsystem:   "job",
				Name:        "in_flight",
				Help:        "Jobs currently being processed",
				ConstLabels: constLabels,
			},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   cfg.Namespace,
				Subsystem:   "job",
				Name:        "stage_duration_seconds",
				Help:        "Pipeline stage duration in seconds",
				Buckets:     []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
				ConstLabels: constLabels,
			},
			[]string{"stage", "outcome"},
		),

		DependencyErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   cfg.Namespace,
				Name:        "dependency_errors_total",
				Help:        "Total number of dependency errors",
				ConstLabels: constLabels,
			},
			[]string{"dependency"},
		),

		SenderBalanceOK: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   cfg.Namespace,
				Name:        "sender_balance_ok",
				Help:        "Whether the relayer account holds more than the minimum balance (1) or not (0)",
				ConstLabels: constLabels,
			},
		),
	}
}

// Handler returns an HTTP handler for exposing metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordRequest records an HTTP request.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.RequestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStage records one pipeline stage run.
func (m *Metrics) RecordStage(stage string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// RecordJob records a job reaching a terminal status.
func (m *Metrics) RecordJob(status string) {
	m.JobsTotal.WithLabelValues(status).Inc()
}

// JobStarted increments the in-flight gauge; the returned func decrements it.
func (m *Metrics) JobStarted() func() {
	m.JobsInFlight.Inc()
	return m.JobsInFlight.Dec
}

// RecordDependencyError counts a failed call to an external dependency.
func (m *Metrics) RecordDependencyError(dependency string) {
	m.DependencyErrors.WithLabelValues(dependency).Inc()
}

// RecordSenderBalance records the outcome of a sender balance check.
func (m *Metrics) RecordSenderBalance(ok bool) {
	if ok {
		m.SenderBalanceOK.Set(1)
		return
	}
	m.SenderBalanceOK.Set(0)
}
