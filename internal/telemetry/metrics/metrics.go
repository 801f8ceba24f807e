// Package metrics exposes the Prometheus instrumentation for the scoring
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for the scoring service. A nil
// *Registry is valid and records nothing, which keeps instrumentation out
// of the way in unit tests.
type Registry struct {
	// Cache performance
	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Collector outcomes per category
	CollectorResults  *prometheus.CounterVec
	CollectorDuration *prometheus.HistogramVec

	// Score pipeline
	ComputeDuration prometheus.Histogram
	ScoreWrites     *prometheus.CounterVec

	// HTTP surface
	RequestDuration *prometheus.HistogramVec
}

// cacheKinds enumerates the cache key families tracked for hit ratio.
var cacheKinds = []string{"score", "info"}

// NewRegistry creates and registers all service metrics with the given
// registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "blitzproof_cache_hit_ratio",
				Help: "Current cache hit ratio (0.0 to 1.0)",
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitzproof_cache_hits_total",
				Help: "Total number of cache hits by key kind",
			},
			[]string{"kind"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitzproof_cache_misses_total",
				Help: "Total number of cache misses by key kind",
			},
			[]string{"kind"},
		),
		CollectorResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitzproof_collector_results_total",
				Help: "Collector outcomes by category (success, default, panic)",
			},
			[]string{"category", "result"},
		),
		CollectorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blitzproof_collector_duration_seconds",
				Help:    "Duration of successful collector fetches by category",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"category"},
		),
		ComputeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blitzproof_compute_duration_seconds",
				Help:    "End-to-end duration of one score computation",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		ScoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitzproof_score_writes_total",
				Help: "Durable score writes by path (system, admin)",
			},
			[]string{"path"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blitzproof_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(
		r.CacheHitRatio,
		r.CacheHits,
		r.CacheMisses,
		r.CollectorResults,
		r.CollectorDuration,
		r.ComputeDuration,
		r.ScoreWrites,
		r.RequestDuration,
	)

	return r
}

var defaultRegistry *Registry

// Initialize registers the service metrics with the default Prometheus
// registerer and installs them as the process-wide default.
func Initialize() {
	defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	log.Info().Msg("Prometheus metrics registry initialized")
}

// Default returns the process-wide registry, which may be nil when metrics
// were never initialized (unit tests).
func Default() *Registry {
	return defaultRegistry
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheHit records a cache hit for the given key kind and refreshes
// the hit-ratio gauge.
func (r *Registry) RecordCacheHit(kind string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(kind).Inc()
	r.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the given key kind.
func (r *Registry) RecordCacheMiss(kind string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(kind).Inc()
	r.updateCacheHitRatio()
}

// RecordCollectorResult counts one collector outcome.
func (r *Registry) RecordCollectorResult(category, result string) {
	if r == nil {
		return
	}
	r.CollectorResults.WithLabelValues(category, result).Inc()
}

// ObserveCollectorDuration records how long a successful fetch took.
func (r *Registry) ObserveCollectorDuration(category string, d time.Duration) {
	if r == nil {
		return
	}
	r.CollectorDuration.WithLabelValues(category).Observe(d.Seconds())
}

// ObserveComputeDuration records one full pipeline computation.
func (r *Registry) ObserveComputeDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.ComputeDuration.Observe(d.Seconds())
}

// RecordScoreWrite counts a durable score write by path.
func (r *Registry) RecordScoreWrite(path string) {
	if r == nil {
		return
	}
	r.ScoreWrites.WithLabelValues(path).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(route, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// updateCacheHitRatio recomputes the aggregate hit ratio across key kinds
// by reading the counters back through the client model.
func (r *Registry) updateCacheHitRatio() {
	hitMetric := &io_prometheus_client.Metric{}
	missMetric := &io_prometheus_client.Metric{}

	totalHits := 0.0
	totalMisses := 0.0

	for _, kind := range cacheKinds {
		if hit, err := r.CacheHits.GetMetricWithLabelValues(kind); err == nil {
			if err := hit.Write(hitMetric); err == nil {
				totalHits += hitMetric.GetCounter().GetValue()
			}
		}
		if miss, err := r.CacheMisses.GetMetricWithLabelValues(kind); err == nil {
			if err := miss.Write(missMetric); err == nil {
				totalMisses += missMetric.GetCounter().GetValue()
			}
		}
	}

	if total := totalHits + totalMisses; total > 0 {
		r.CacheHitRatio.Set(totalHits / total)
	}
}
