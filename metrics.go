package photocluster

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle, the
// cache backends and the preloader. It satisfies the Metrics interfaces of
// the cache and preload packages, so one collector can be shared across the
// whole data layer. Safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimiterTokens *prometheus.GaugeVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec

	deduplicationHits *prometheus.CounterVec

	retryBudgetExceeded *prometheus.CounterVec

	preloadScheduled prometheus.Counter
	preloadSettled   *prometheus.CounterVec
	preloadQueued    prometheus.Gauge
	preloadActive    prometheus.Gauge

	errorsTotal *prometheus.CounterVec

	registerer prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "photocluster_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "photocluster_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "photocluster_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "photocluster_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"backend"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"backend"},
		),
		cacheEvictions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_cache_evictions_total",
				Help: "Total number of cache entries removed",
			},
			[]string{"backend", "reason"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "photocluster_cache_size",
				Help: "Current number of entries per cache backend",
			},
			[]string{"backend"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_deduplication_hits_total",
				Help: "Total number of calls coalesced into an in-flight request",
			},
			[]string{"method", "endpoint"},
		),
		retryBudgetExceeded: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_retry_budget_exceeded_total",
				Help: "Total number of times the retry budget was exhausted",
			},
			[]string{"host"},
		),
		preloadScheduled: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "photocluster_preload_scheduled_total",
				Help: "Total number of assets scheduled for preloading",
			},
		),
		preloadSettled: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_preload_settled_total",
				Help: "Total number of preload fetches settled",
			},
			[]string{"status"},
		),
		preloadQueued: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "photocluster_preload_queue_depth",
				Help: "Number of assets waiting in the preload queue",
			},
		),
		preloadActive: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "photocluster_preload_active",
				Help: "Number of preload fetches currently running",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "photocluster_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
		registerer: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, code, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordCircuitBreakerState sets the gauge to the breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimiterTokens sets the available token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens int) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.WithLabelValues(name).Set(float64(tokens))
}

// RecordCacheHit increments the hit counter for a backend.
func (mc *MetricsCollector) RecordCacheHit(backend string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(backend).Inc()
}

// RecordCacheMiss increments the miss counter for a backend.
func (mc *MetricsCollector) RecordCacheMiss(backend string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(backend).Inc()
}

// RecordCacheEviction increments the eviction counter. Reason is one of
// "expired", "capacity" or "corrupt".
func (mc *MetricsCollector) RecordCacheEviction(backend, reason string) {
	if mc == nil {
		return
	}
	mc.cacheEvictions.WithLabelValues(backend, reason).Inc()
}

// RecordCacheSize sets the per-backend size gauge.
func (mc *MetricsCollector) RecordCacheSize(backend string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(backend).Set(float64(size))
}

// RecordDeduplicationHit increments the coalesced-call counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.deduplicationHits.WithLabelValues(method, endpoint).Inc()
}

// RecordRetryBudgetExceeded increments the retry budget exceeded counter.
func (mc *MetricsCollector) RecordRetryBudgetExceeded(endpoint string) {
	if mc == nil {
		return
	}

	host := endpoint
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		host = endpoint[:idx]
	}
	mc.retryBudgetExceeded.WithLabelValues(host).Inc()
}

// RecordPreloadScheduled counts one asset accepted into the preload queue.
func (mc *MetricsCollector) RecordPreloadScheduled() {
	if mc == nil {
		return
	}
	mc.preloadScheduled.Inc()
}

// RecordPreloadSettled counts one finished preload fetch by status.
func (mc *MetricsCollector) RecordPreloadSettled(status string) {
	if mc == nil {
		return
	}
	mc.preloadSettled.WithLabelValues(status).Inc()
}

// RecordPreloadQueueDepth sets the queue depth gauge.
func (mc *MetricsCollector) RecordPreloadQueueDepth(n int) {
	if mc == nil {
		return
	}
	mc.preloadQueued.Set(float64(n))
}

// RecordPreloadActive sets the active fetch gauge.
func (mc *MetricsCollector) RecordPreloadActive(n int) {
	if mc == nil {
		return
	}
	mc.preloadActive.Set(float64(n))
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// Registry exposes the underlying prometheus registry when the collector was
// built on one, otherwise nil.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	if r, ok := mc.registerer.(*prometheus.Registry); ok {
		return r
	}
	return nil
}
