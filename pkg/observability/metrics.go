package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements [QueryHooks], [CacheHooks] and [HTTPHooks] on top of
// Prometheus collectors. It is safe for concurrent use, and all methods are
// no-ops on a nil receiver.
type Metrics struct {
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	cyclesInFlight  prometheus.Gauge
	attemptsTotal   prometheus.Counter
	retriesTotal    prometheus.Counter
	staleCompletion prometheus.Counter

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSets   *prometheus.CounterVec
	cacheBytes  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_cycles_total",
				Help: "Fetch cycles settled, by final status",
			},
			[]string{"status"},
		),
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchq_cycle_duration_seconds",
				Help:    "Time from cycle start to settlement, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		cyclesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "fetchq_cycles_in_flight",
			Help: "Fetch cycles started but not yet settled",
		}),
		attemptsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fetchq_attempts_total",
			Help: "Attempts made inside fetch cycles",
		}),
		retriesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fetchq_retries_total",
			Help: "Retry timers armed after a failed attempt",
		}),
		staleCompletion: f.NewCounter(prometheus.CounterOpts{
			Name: "fetchq_stale_completions_total",
			Help: "Completions discarded because a newer cycle had started",
		}),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_cache_hits_total",
				Help: "Fresh cache entries served without a network call",
			},
			[]string{"namespace"},
		),
		cacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_cache_misses_total",
				Help: "Cache lookups that fell through to the network",
			},
			[]string{"namespace"},
		),
		cacheSets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_cache_sets_total",
				Help: "Response entries written to the cache",
			},
			[]string{"namespace"},
		),
		cacheBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_cache_written_bytes_total",
				Help: "Body bytes written to the cache",
			},
			[]string{"namespace"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_http_requests_total",
				Help: "HTTP responses received, by status code",
			},
			[]string{"method", "host", "code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchq_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),
		httpErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchq_http_errors_total",
				Help: "HTTP requests that failed without a response",
			},
			[]string{"method", "host"},
		),
	}
}

// Register installs m as the global query, cache and HTTP hooks.
func (m *Metrics) Register() {
	if m == nil {
		return
	}
	SetQueryHooks(m)
	SetCacheHooks(m)
	SetHTTPHooks(m)
}

// OnCycleStart implements [QueryHooks].
func (m *Metrics) OnCycleStart(_ context.Context, _ string, _ bool) {
	if m == nil {
		return
	}
	m.cyclesInFlight.Inc()
}

// OnAttempt implements [QueryHooks].
func (m *Metrics) OnAttempt(_ context.Context, _ string, _ int) {
	if m == nil {
		return
	}
	m.attemptsTotal.Inc()
}

// OnRetryScheduled implements [QueryHooks].
func (m *Metrics) OnRetryScheduled(_ context.Context, _ string, _ int, _ time.Duration) {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// OnSettle implements [QueryHooks].
func (m *Metrics) OnSettle(_ context.Context, _ string, status string, d time.Duration, _ error) {
	if m == nil {
		return
	}
	m.cyclesInFlight.Dec()
	m.cyclesTotal.WithLabelValues(status).Inc()
	m.cycleDuration.WithLabelValues(status).Observe(d.Seconds())
}

// OnStaleCompletion implements [QueryHooks].
func (m *Metrics) OnStaleCompletion(_ context.Context, _ string) {
	if m == nil {
		return
	}
	m.staleCompletion.Inc()
}

// OnCacheHit implements [CacheHooks].
func (m *Metrics) OnCacheHit(_ context.Context, namespace string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(namespace).Inc()
}

// OnCacheMiss implements [CacheHooks].
func (m *Metrics) OnCacheMiss(_ context.Context, namespace string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(namespace).Inc()
}

// OnCacheSet implements [CacheHooks].
func (m *Metrics) OnCacheSet(_ context.Context, namespace string, size int) {
	if m == nil {
		return
	}
	m.cacheSets.WithLabelValues(namespace).Inc()
	m.cacheBytes.WithLabelValues(namespace).Add(float64(size))
}

// OnRequest implements [HTTPHooks]. Requests are counted on completion.
func (m *Metrics) OnRequest(context.Context, string, string, string) {}

// OnResponse implements [HTTPHooks].
func (m *Metrics) OnResponse(_ context.Context, method, host, _ string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, host, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, host).Observe(d.Seconds())
}

// OnError implements [HTTPHooks].
func (m *Metrics) OnError(_ context.Context, method, host, _ string, _ error) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, host).Inc()
}

var (
	_ QueryHooks = (*Metrics)(nil)
	_ CacheHooks = (*Metrics)(nil)
	_ HTTPHooks  = (*Metrics)(nil)
)
