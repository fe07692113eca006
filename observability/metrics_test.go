package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NotNil(t, m.BatchesTotal)
	assert.NotNil(t, m.BatchLatency)
	assert.NotNil(t, m.RetriesTotal)
	assert.NotNil(t, m.RateLimitDecision)
	assert.NotNil(t, m.ResponsesTotal)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestMetrics_BatchesTotal_CountsByModelAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.BatchesTotal.WithLabelValues("gpt-4o", "success").Inc()
	m.BatchesTotal.WithLabelValues("gpt-4o", "success").Inc()
	m.BatchesTotal.WithLabelValues("gpt-4o", "failure").Inc()

	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.BatchesTotal.WithLabelValues("gpt-4o", "success")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.BatchesTotal.WithLabelValues("gpt-4o", "failure")))
}

func TestMetrics_ErrorsTotal_CountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ErrorsTotal.WithLabelValues("claude-3-haiku", "rate_limited").Inc()

	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.ErrorsTotal.WithLabelValues("claude-3-haiku", "rate_limited")))
}
