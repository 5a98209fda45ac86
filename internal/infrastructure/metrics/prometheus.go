// Package metrics provides Prometheus metrics for the recognition pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cigarlens"

// Recorder owns every pipeline metric. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	backendAttempts *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	recognitions    *prometheus.CounterVec
	imageResolution *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewRecorder registers all metrics on a fresh registry, plus Go runtime and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Result cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Result cache misses, including expired entries.",
		}),
		backendAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "backend_attempts_total",
			Help:      "Inference backend calls by model, transport and outcome.",
		}, []string{"model", "transport", "outcome"}),
		backendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "backend_duration_seconds",
			Help:      "Inference backend call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"transport"}),
		recognitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "recognitions_total",
			Help:      "Recognition requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		imageResolution: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "resolutions_total",
			Help:      "Image resolutions by winning strategy (none when exhausted).",
		}, []string{"strategy"}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "reconciliations_total",
			Help:      "Catalog reconciliations by outcome.",
		}, []string{"outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// CacheHit counts a cache hit.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// CacheMiss counts a cache miss.
func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheMisses.Inc()
}

// BackendAttempt records one transport call.
func (r *Recorder) BackendAttempt(model, transport, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.backendAttempts.WithLabelValues(model, transport, outcome).Inc()
	r.backendLatency.WithLabelValues(transport).Observe(elapsed.Seconds())
}

// Recognition records a finished recognition request.
func (r *Recorder) Recognition(mode, outcome string) {
	if r == nil {
		return
	}
	r.recognitions.WithLabelValues(mode, outcome).Inc()
}

// ImageResolution records which strategy produced an image.
func (r *Recorder) ImageResolution(strategy string) {
	if r == nil {
		return
	}
	r.imageResolution.WithLabelValues(strategy).Inc()
}

// Reconciliation records a reconciliation outcome.
func (r *Recorder) Reconciliation(outcome string) {
	if r == nil {
		return
	}
	r.reconciliations.WithLabelValues(outcome).Inc()
}

// HTTPRequest records a served request.
func (r *Recorder) HTTPRequest(route, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, status).Inc()
	r.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
