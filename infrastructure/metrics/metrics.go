// Package metrics provides Prometheus instrumentation for the dispatch engine.
//
// This is process-level instrumentation for operators scraping Braid; it is
// distinct from the tenant-facing realtime counters exposed by
// internal/engine/counters, which have their own bucketed wire format.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aishacrm/braid/infrastructure/runtime"
)

// Metrics holds all Prometheus collectors for one Braid process.
type Metrics struct {
	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	DispatchInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Chain metrics
	ChainRunsTotal    *prometheus.CounterVec
	ChainStepDuration *prometheus.HistogramVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_dispatch_total",
				Help: "Total number of tool dispatches",
			},
			[]string{"service", "tool", "policy", "result"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "braid_dispatch_duration_seconds",
				Help:    "Tool dispatch duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service", "tool"},
		),
		DispatchInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "braid_dispatch_in_flight",
				Help: "Current number of dispatches being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_errors_total",
				Help: "Total number of dispatch errors by kind",
			},
			[]string{"service", "kind", "tool"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_cache_hits_total",
				Help: "Total number of cache hits on read-only tools",
			},
			[]string{"service", "tool"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_cache_misses_total",
				Help: "Total number of cache misses on read-only tools",
			},
			[]string{"service", "tool"},
		),

		ChainRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_chain_runs_total",
				Help: "Total number of chain executions by outcome",
			},
			[]string{"service", "chain", "outcome"},
		),
		ChainStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "braid_chain_step_duration_seconds",
				Help:    "Chain step duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service", "chain", "step"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "braid_service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "braid_service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.DispatchTotal,
			m.DispatchDuration,
			m.DispatchInFlight,
			m.ErrorsTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.ChainRunsTotal,
			m.ChainStepDuration,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordDispatch records one completed dispatch.
func (m *Metrics) RecordDispatch(service, tool, policy, result string, duration time.Duration) {
	m.DispatchTotal.WithLabelValues(service, tool, policy, result).Inc()
	m.DispatchDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordError records a dispatch error by kind.
func (m *Metrics) RecordError(service, kind, tool string) {
	m.ErrorsTotal.WithLabelValues(service, kind, tool).Inc()
}

// RecordCacheHit records a read-only-tool cache hit.
func (m *Metrics) RecordCacheHit(service, tool string) {
	m.CacheHitsTotal.WithLabelValues(service, tool).Inc()
}

// RecordCacheMiss records a read-only-tool cache miss.
func (m *Metrics) RecordCacheMiss(service, tool string) {
	m.CacheMissesTotal.WithLabelValues(service, tool).Inc()
}

// RecordChainRun records one completed chain execution.
func (m *Metrics) RecordChainRun(service, chain, outcome string) {
	m.ChainRunsTotal.WithLabelValues(service, chain, outcome).Inc()
}

// RecordChainStep records one chain step's duration.
func (m *Metrics) RecordChainStep(service, chain, step string, duration time.Duration) {
	m.ChainStepDuration.WithLabelValues(service, chain, step).Observe(duration.Seconds())
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight dispatch counter.
func (m *Metrics) IncrementInFlight() {
	m.DispatchInFlight.Inc()
}

// DecrementInFlight decrements the in-flight dispatch counter.
func (m *Metrics) DecrementInFlight() {
	m.DispatchInFlight.Dec()
}

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
