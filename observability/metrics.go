package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus instrumentation.
//
// Grounded on Collector
// (_examples/BaSui01-agentflow/internal/metrics/collector.go): CounterVec
// and HistogramVec fields built via promauto with a shared namespace,
// narrowed to the counters the gateway's batch/retry/rate-limit/response
// path actually emits.
type Metrics struct {
	BatchesTotal      *prometheus.CounterVec
	BatchLatency      *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec
	RateLimitDecision *prometheus.CounterVec
	ResponsesTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics registers the gateway's metrics against reg. Pass
// prometheus.NewRegistry() for test isolation, or nil to use the default
// global registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	const namespace = "llm_gateway"

	return &Metrics{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total batch executor invocations, by model and outcome.",
		}, []string{"model", "outcome"}),

		BatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_latency_seconds",
			Help:      "Batch executor invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),

		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total retry attempts, by model.",
		}, []string{"model"}),

		RateLimitDecision: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions, by model and decision kind.",
		}, []string{"model", "decision"}),

		ResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total responses delivered to callers, by model.",
		}, []string{"model"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total terminal errors delivered to callers, by model and kind.",
		}, []string{"model", "kind"}),
	}
}
