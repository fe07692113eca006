package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/executor"
	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/observability"
	"github.com/Dieugene/llm-gateway/queue"
)

// DefaultOutputTokenEstimate is used when estimating a request's token
// cost before its actual usage is known (spec.md §4.4: "a conservative
// estimate (default 1000 output tokens)").
const DefaultOutputTokenEstimate = 1000

// Estimator measures the input-token cost of a Request, used to decide
// admission before the provider call returns actual usage.
type Estimator interface {
	CountRequest(req gatewaytypes.Request) int
}

// Wrapper decorates an inner executor.BatchExecutor with sliding-window
// rate limiting, consulting one Tracker per model. It is the outermost
// layer in the gateway's fixed composition order (spec.md §4.6): a
// rate-limited rejection is never retried because it never reaches the
// retry.Wrapper beneath it.
type Wrapper struct {
	inner     executor.BatchExecutor
	tracker   *Tracker
	estimator Estimator
	log       *observability.JSONLWriter
	logger    *zap.Logger
	metrics   *observability.Metrics
	sleep     func(context.Context, time.Duration) error
}

// SetMetrics attaches Prometheus instrumentation; nil (the default)
// disables it.
func (w *Wrapper) SetMetrics(m *observability.Metrics) {
	w.metrics = m
}

// NewWrapper creates a rate-limit Wrapper around inner, gated by tracker.
func NewWrapper(inner executor.BatchExecutor, tracker *Tracker, estimator Estimator, log *observability.JSONLWriter, logger *zap.Logger) *Wrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrapper{
		inner:     inner,
		tracker:   tracker,
		estimator: estimator,
		log:       log,
		logger:    logger.With(zap.String("component", "ratelimit")),
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecuteBatch consults the tracker for each entry in submission order
// before delegating the whole batch to the inner executor. A request
// that can be admitted only after a bounded wait sleeps that long; a
// request that can never be admitted rejects the entire batch, matching
// spec.md §4.4's rate-limit wrapper semantics.
func (w *Wrapper) ExecuteBatch(ctx context.Context, cfg gatewaytypes.ModelConfig, batch []queue.Entry) {
	if w.tracker == nil {
		w.inner.ExecuteBatch(ctx, cfg, batch)
		return
	}

	for _, e := range batch {
		estimated := w.estimatedTokens(e.Request)

		if w.tracker.Admit(estimated) {
			w.logDecision(cfg.ModelName, "admit", 0)
			w.recordDecision(cfg.ModelName, "admit")
			continue
		}

		delay := w.tracker.DelayUntilAdmit(estimated)
		if delay <= 0 {
			w.logDecision(cfg.ModelName, "reject", 0)
			w.recordDecision(cfg.ModelName, "reject")
			rejectAll(batch, gatewayerr.New(gatewayerr.RateLimited, "rate limit exceeded for model "+cfg.ModelName))
			return
		}

		w.logDecision(cfg.ModelName, "delay", delay.Milliseconds())
		w.recordDecision(cfg.ModelName, "delay")
		if err := w.sleep(ctx, delay); err != nil {
			rejectAll(batch, gatewayerr.New(gatewayerr.Cancelled, "rate limit wait interrupted").WithCause(err))
			return
		}
	}

	w.inner.ExecuteBatch(ctx, cfg, batch)

	for _, e := range batch {
		if resp, ok := peekResolved(e); ok {
			tokens := resp.Usage
			if tokens != nil {
				w.tracker.Record(tokens.TotalTokens())
			} else {
				w.tracker.Record(w.estimatedTokens(e.Request))
			}
		}
	}
}

func (w *Wrapper) estimatedTokens(req gatewaytypes.Request) int {
	if w.estimator == nil {
		return DefaultOutputTokenEstimate
	}
	return w.estimator.CountRequest(req) + DefaultOutputTokenEstimate
}

func (w *Wrapper) logDecision(model, decision string, delayMs int64) {
	if w.log == nil {
		return
	}
	reqs, tokens := w.tracker.Usage()
	w.log.WriteRateLimit(observability.RateLimitRecord{
		Model:    model,
		Decision: decision,
		DelayMs:  delayMs,
		RPMUsage: reqs,
		TPMUsage: tokens,
	})
}

func (w *Wrapper) recordDecision(model, decision string) {
	if w.metrics != nil {
		w.metrics.RateLimitDecision.WithLabelValues(model, decision).Inc()
	}
}

func rejectAll(batch []queue.Entry, err error) {
	for _, e := range batch {
		e.Handle.Reject(err)
	}
}

// peekResolved reports whether e's handle already completed successfully
// and returns its Response. It never blocks: by the time this is called
// ExecuteBatch on the inner executor has already returned, and the
// Base/retry executors guarantee every handle is resolved or rejected
// before returning.
func peekResolved(e queue.Entry) (gatewaytypes.Response, bool) {
	return e.Handle.Peek()
}
