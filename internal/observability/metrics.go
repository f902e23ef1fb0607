// Package observability provides the store's metrics, structured error
// log, and alerting surfaces: Prometheus counters/histograms for the
// tool and search paths, a severity/category-tagged error log, and a
// threshold-based alert manager with cooldown.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the store registers. Fields
// are exported so callers can call them directly (e.g.
// m.ToolCalls.WithLabelValues("remember", "ok").Inc()) rather than
// going through wrapper methods for every metric.
type Metrics struct {
	ToolCalls       *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	SearchHits      *prometheus.HistogramVec
	CleanupActions  *prometheus.CounterVec
	TaskQueueDepth  prometheus.Gauge
	EmbeddingErrors prometheus.Counter
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init registers every collector with constLabels applied to all of them
// (e.g. {"service": "echovault"}) and returns the singleton Metrics.
// Safe to call multiple times; only the first call registers.
func Init(constLabels prometheus.Labels) *Metrics {
	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
		f := promauto.With(reg)

		instance = &Metrics{
			ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
				Name: "echovault_tool_calls_total",
				Help: "Total number of tool invocations by tool name and outcome",
			}, []string{"tool", "outcome"}),

			ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "echovault_tool_duration_seconds",
				Help:    "Tool invocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"tool"}),

			SearchHits: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "echovault_search_hits",
				Help:    "Number of hits returned per search call",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			}, []string{"mode"}),

			CleanupActions: f.NewCounterVec(prometheus.CounterOpts{
				Name: "echovault_cleanup_actions_total",
				Help: "Total number of forgetting-policy actions taken by partition",
			}, []string{"action"}),

			TaskQueueDepth: f.NewGauge(prometheus.GaugeOpts{
				Name: "echovault_taskqueue_depth",
				Help: "Current number of pending tasks in the async task queue",
			}),

			EmbeddingErrors: f.NewCounter(prometheus.CounterOpts{
				Name: "echovault_embedding_errors_total",
				Help: "Total number of embedding provider errors (before fallback)",
			}),
		}
	})
	return instance
}
