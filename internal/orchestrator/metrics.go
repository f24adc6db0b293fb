package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the teacher's collector layout
// (internal/observability/metrics.go), scoped to the orchestrator's own
// concerns instead of channel/session metrics. Unlike the teacher's
// promauto-based NewMetrics, these collectors are constructed unregistered
// so an Orchestrator can be built repeatedly (tests, multiple provider
// instances) without colliding on Prometheus's default registry; callers
// that want them exposed call Register.
type Metrics struct {
	// Turns counts completed turns by outcome: success, cache_hit,
	// partial_tool_loop, error.
	Turns *prometheus.CounterVec

	// QueryDuration measures end-to-end Query() latency in seconds.
	QueryDuration prometheus.Histogram

	// ToolIterations observes one sample per Query turn that executed at
	// least one tool-call batch: the number of batches that turn ran.
	ToolIterations prometheus.Histogram

	// CacheHits and CacheMisses count response-cache outcomes.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// StreamEvents counts emitted streaming events by type.
	StreamEvents *prometheus.CounterVec
}

// NewMetrics constructs the orchestrator's Prometheus collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_turns_total",
				Help: "Total orchestrator turns by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestrator_query_duration_seconds",
				Help:    "End-to-end Query() latency",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		ToolIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestrator_tool_iterations",
				Help:    "Number of tool-call batches executed per turn",
				Buckets: prometheus.LinearBuckets(1, 1, 6),
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orchestrator_cache_hits_total",
				Help: "Response cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orchestrator_cache_misses_total",
				Help: "Response cache misses",
			},
		),
		StreamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_events_total",
				Help: "Streaming pipeline events emitted, by type",
			},
			[]string{"type"},
		),
	}
}

// Register exposes m's collectors on reg, typically prometheus's default
// registerer wired to an HTTP /metrics handler at startup.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.Turns, m.QueryDuration, m.ToolIterations,
		m.CacheHits, m.CacheMisses, m.StreamEvents,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) recordTurn(outcome string) {
	m.Turns.WithLabelValues(outcome).Inc()
}
