package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation: HTTP request
// timing, cache hit rates, and the relationship-sync counters the sync
// engine reports through its Recorder interface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncSteps       *prometheus.CounterVec
	cascadeOps      *prometheus.HistogramVec
	subscriptions   prometheus.Gauge
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	syncSteps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relationship_sync_steps_total",
		Help: "Relationship sync steps by mirrored relationship and outcome",
	}, []string{"relationship", "outcome"})

	cascadeOps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_batch_ops",
		Help:    "Write operations per committed delete cascade batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"role"})

	subscriptions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_subscriptions",
		Help: "Currently open store subscriptions",
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, syncSteps, cascadeOps, subscriptions, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncSteps:       syncSteps,
		cascadeOps:      cascadeOps,
		subscriptions:   subscriptions,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// SyncStepApplied counts one mirrored relationship write.
func (m *MetricsService) SyncStepApplied(relationship string) {
	if m == nil {
		return
	}
	m.syncSteps.WithLabelValues(relationship, "applied").Inc()
}

// SyncStepFailed counts one failed relationship write.
func (m *MetricsService) SyncStepFailed(relationship string) {
	if m == nil {
		return
	}
	m.syncSteps.WithLabelValues(relationship, "failed").Inc()
}

// CascadeCommitted records the size of a committed delete cascade.
func (m *MetricsService) CascadeCommitted(role string, ops int) {
	if m == nil {
		return
	}
	m.cascadeOps.WithLabelValues(role).Observe(float64(ops))
}

// SubscriptionOpened and SubscriptionClosed track live listener count.
func (m *MetricsService) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// SubscriptionClosed decrements the live listener count.
func (m *MetricsService) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}
