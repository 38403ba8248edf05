// Package metrics groups the Prometheus instruments for conversation
// lifecycle management. All recording methods are nil-safe so callers can
// run without metrics wired.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the lifecycle manager.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	CompressionRatio prometheus.Histogram
	PassDuration     prometheus.Histogram
	TurnsCompressed  prometheus.Counter
	ModelErrors      *prometheus.CounterVec
	Transitions      prometheus.Counter
	ArchiveFailures  prometheus.Counter
	SegmentChars     prometheus.Gauge
}

// New registers the instruments under the given namespace on the default
// registerer.
func New(namespace string) *Metrics {
	return &Metrics{
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Compression cache lookups by result.",
		}, []string{"result"}),
		CompressionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Achieved chars-out over chars-in per compression pass.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a compression pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		TurnsCompressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_compressed_total",
			Help:      "Turns whose content was replaced by a compressed form.",
		}),
		ModelErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_errors_total",
			Help:      "Model capability failures by operation.",
		}, []string{"op"}),
		Transitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_transitions_total",
			Help:      "Confirmed module transitions.",
		}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Archive writes that failed and blocked a transition.",
		}),
		SegmentChars: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_chars",
			Help:      "Current size of the active segment in characters.",
		}),
	}
}

// ObserveCacheLookup records one cache lookup. hit selects the result
// label.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObservePass records the aggregates of one compression pass.
func (m *Metrics) ObservePass(ratio float64, compressed int, d time.Duration) {
	if m == nil {
		return
	}
	if compressed > 0 {
		m.CompressionRatio.Observe(ratio)
		m.TurnsCompressed.Add(float64(compressed))
	}
	m.PassDuration.Observe(d.Seconds())
}

// ObserveModelError records a model capability failure for an operation
// ("compress" or "summary").
func (m *Metrics) ObserveModelError(op string) {
	if m == nil {
		return
	}
	m.ModelErrors.WithLabelValues(op).Inc()
}

// ObserveTransition records one confirmed module transition.
func (m *Metrics) ObserveTransition() {
	if m == nil {
		return
	}
	m.Transitions.Inc()
}

// ObserveArchiveFailure records a blocked transition.
func (m *Metrics) ObserveArchiveFailure() {
	if m == nil {
		return
	}
	m.ArchiveFailures.Inc()
}

// SetSegmentChars records the active segment's current size.
func (m *Metrics) SetSegmentChars(n int) {
	if m == nil {
		return
	}
	m.SegmentChars.Set(float64(n))
}

// Handler exposes the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}
