package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/orcha/pkg/observability"
)

// Metrics collects request and pipeline metrics in its own registry. It
// implements the pipeline, cache and fetch observability hooks.
type Metrics struct {
	reg *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	stageErrors     *prometheus.CounterVec
	solverSteps     prometheus.Histogram
	droppedRows     prometheus.Counter
	cacheEvents     *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orcha_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orcha_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orcha_pipeline_stage_duration_seconds",
			Help:    "Duration of build, layout and render stages.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orcha_pipeline_stage_errors_total",
			Help: "Failed pipeline stages.",
		}, []string{"stage"}),
		solverSteps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "orcha_solver_steps",
			Help:    "Solver steps per layout run.",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 500},
		}),
		droppedRows: f.NewCounter(prometheus.CounterOpts{
			Name: "orcha_build_dropped_rows_total",
			Help: "Input rows skipped by the builder.",
		}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orcha_cache_events_total",
			Help: "Cache hits, misses and writes by key type.",
		}, []string{"type", "event"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orcha_spec_fetches_total",
			Help: "Remote spec fetches by host and outcome.",
		}, []string{"host", "outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "orcha_spec_fetch_duration_seconds",
			Help:    "Latency of remote spec fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) observeRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) stage(name string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(name).Inc()
	}
}

// =============================================================================
// observability hooks
// =============================================================================

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

func (m *Metrics) OnBuildStart(context.Context, int) {}

func (m *Metrics) OnBuildComplete(_ context.Context, _, dropped int, d time.Duration, err error) {
	m.stage("build", d, err)
	m.droppedRows.Add(float64(dropped))
}

func (m *Metrics) OnLayoutStart(context.Context, int) {}

func (m *Metrics) OnLayoutComplete(_ context.Context, steps int, d time.Duration, err error) {
	m.stage("layout", d, err)
	m.solverSteps.Observe(float64(steps))
}

func (m *Metrics) OnRenderStart(context.Context, string, []string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, _ string, _ []string, d time.Duration, err error) {
	m.stage("render", d, err)
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	m.fetches.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.fetches.WithLabelValues(host, "error").Inc()
}
