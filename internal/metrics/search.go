package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	ProbeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livesearch",
			Name:      "probe_requests_total",
			Help:      "Total number of liveness probes by outcome",
		},
		[]string{"outcome"}, // "alive" / "dead" / "unknown"
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "livesearch",
			Name:      "probe_duration_seconds",
			Help:      "Liveness probe duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	MaskCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livesearch",
			Name:      "mask_cache_total",
			Help:      "Liveness mask cache lookups",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	MaskFactsMergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "livesearch",
			Name:      "mask_facts_merged_total",
			Help:      "Rank liveness facts written to the mask cache",
		},
	)

	ProvidersCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livesearch",
			Name:      "providers_cache_total",
			Help:      "Provider count cache hits and misses",
		},
		[]string{"result"},
	)

	SearchWideningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livesearch",
			Name:      "search_widenings_total",
			Help:      "Slice widenings caused by dead links",
		},
		[]string{"media"},
	)

	SearchDeadLinksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livesearch",
			Name:      "search_dead_links_total",
			Help:      "Hits dropped as dead links",
		},
		[]string{"media"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "livesearch",
			Name:      "cache_breaker_state",
			Help:      "Cache circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProbeRequestsTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(MaskCacheTotal)
	prometheus.MustRegister(MaskFactsMergedTotal)
	prometheus.MustRegister(ProvidersCacheTotal)
	prometheus.MustRegister(SearchWideningsTotal)
	prometheus.MustRegister(SearchDeadLinksTotal)
	prometheus.MustRegister(BreakerState)
	searchMetricsRegistered = true
}
