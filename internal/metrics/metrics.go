// Package metrics exposes Prometheus metrics for the admission service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission outcomes used as the outcome label.
const (
	OutcomeFirst    = "first"
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
)

// Manager owns the service metrics on its own registry.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	admissions         *prometheus.CounterVec
	corruptSkipped     prometheus.Counter
	inferenceDuration  prometheus.Histogram
	scanDuration       prometheus.Histogram
	bestCombinedScore  prometheus.Histogram
	corpusSize         prometheus.Gauge
	preprocessFailures prometheus.Counter
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry uses the given registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors registers the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewManager creates the metrics on a custom registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "imagesieve",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.admissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "admissions_total",
		Help:      "Admission decisions by outcome",
	}, []string{"outcome"})
	m.corruptSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "corrupt_records_skipped_total",
		Help:      "Stored records skipped during a corpus scan because they could not be read",
	})
	m.inferenceDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "inference_duration_seconds",
		Help:      "Object detection latency",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	m.scanDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "scan_duration_seconds",
		Help:      "Time spent comparing a candidate against the stored corpus",
		Buckets:   prometheus.DefBuckets,
	})
	m.bestCombinedScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "best_combined_score",
		Help:      "Combined score of the best match per admission request",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})
	m.corpusSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "corpus_size",
		Help:      "Number of records in the corpus after the last admission",
	})
	m.preprocessFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "preprocess_failures_total",
		Help:      "Uploads rejected because they could not be decoded or preprocessed",
	})
	return m
}

func (m *Manager) ObserveAdmission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}

func (m *Manager) IncCorruptSkipped() {
	if m == nil {
		return
	}
	m.corruptSkipped.Inc()
}

func (m *Manager) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inferenceDuration.Observe(d.Seconds())
}

func (m *Manager) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

func (m *Manager) ObserveBestScore(score int) {
	if m == nil {
		return
	}
	m.bestCombinedScore.Observe(float64(score))
}

func (m *Manager) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusSize.Set(float64(n))
}

func (m *Manager) IncPreprocessFailures() {
	if m == nil {
		return
	}
	m.preprocessFailures.Inc()
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
