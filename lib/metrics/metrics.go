// Package metrics holds the Prometheus collectors shared by the registry,
// sessions and the scanner. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "wcx").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registerer.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registerer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics groups the wcx collectors.
type Metrics struct {
	registrySets    *prometheus.CounterVec
	propertyUpdates *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	scanDuration    prometheus.Histogram
	scannedFiles    *prometheus.CounterVec
}

// New registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "wcx",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registrySets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "registry_sets_total",
			Help:        "Configuration commits by outcome (accepted, rejected)",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),

		propertyUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "property_updates_total",
			Help:        "Client property updates by tag and outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"tag", "result"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "sessions_active",
			Help:        "Number of open synchronisation sessions",
			ConstLabels: cfg.ConstLabels,
		}),

		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "scan_duration_seconds",
			Help:        "Duration of manifest scans",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		scannedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "scanned_files_total",
			Help:        "Files visited by the scanner, split by cache outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"cache"}),
	}
}

// RegistrySet records the outcome of a SetConfigurations call.
func (m *Metrics) RegistrySet(accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.registrySets.WithLabelValues(result).Inc()
}

// PropertyUpdate records a client property update. result is one of
// "changed", "unchanged", "mismatch" or "unknown".
func (m *Metrics) PropertyUpdate(tag, result string) {
	if m == nil {
		return
	}
	m.propertyUpdates.WithLabelValues(tag, result).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// ScanFinished observes the duration of a scan started at start.
func (m *Metrics) ScanFinished(start time.Time) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(time.Since(start).Seconds())
}

// FileScanned records a visited file; cached reports a cache hit.
func (m *Metrics) FileScanned(cached bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	m.scannedFiles.WithLabelValues(outcome).Inc()
}
