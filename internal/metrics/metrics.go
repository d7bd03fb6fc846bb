// ABOUTME: Prometheus collectors for aggregation passes, routed calls and context switches
// ABOUTME: Registered once on the default registry and served by promhttp

package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coven_switchboard"

var (
	registerOnce sync.Once

	passes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "passes_total",
			Help:      "Full aggregation passes by outcome.",
		},
		[]string{"outcome"},
	)
	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a full aggregation pass, including worker restarts.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	workerQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "worker_queries_total",
			Help:      "Per-worker capability queries.",
		},
		[]string{"worker", "success"},
	)
	catalogTools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "tools",
			Help:      "Tools in the published catalog.",
		},
	)
	liveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "workers",
			Help:      "Workers that contributed to the published catalog.",
		},
	)
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "tool_calls_total",
			Help:      "Routed tool calls by outcome.",
		},
		[]string{"outcome"},
	)
	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "tool_call_duration_seconds",
			Help:      "Routed tool call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	switches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "switcher",
			Name:      "switches_total",
			Help:      "Context switch requests by outcome.",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers every collector on the default registry. Safe to call repeatedly.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			passes, passDuration, workerQueries, catalogTools, liveWorkers,
			toolCalls, toolCallDuration, switches,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// RecordPass records a completed aggregation pass.
func RecordPass(outcome string, duration time.Duration, tools, workers int) {
	RegisterMetrics()
	passes.WithLabelValues(outcome).Inc()
	passDuration.Observe(duration.Seconds())
	catalogTools.Set(float64(tools))
	liveWorkers.Set(float64(workers))
}

// RecordWorkerQuery records one worker's capability query.
func RecordWorkerQuery(worker string, success bool) {
	RegisterMetrics()
	workerQueries.WithLabelValues(worker, strconv.FormatBool(success)).Inc()
}

// RecordToolCall records a routed call.
func RecordToolCall(outcome string, duration time.Duration) {
	RegisterMetrics()
	toolCalls.WithLabelValues(outcome).Inc()
	toolCallDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSwitch records a context switch request.
func RecordSwitch(outcome string) {
	RegisterMetrics()
	switches.WithLabelValues(outcome).Inc()
}
