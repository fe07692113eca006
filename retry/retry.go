// Package retry implements the gateway's Retry Wrapper: a BatchExecutor
// decorator that re-invokes its inner executor on classified-transient
// failures with exponential backoff and jitter.
//
// Grounded on the shape of
// _examples/BaSui01-agentflow/llm/retry/backoff.go (RetryPolicy fields,
// calculateDelay's multiplicative-backoff-plus-symmetric-jitter formula)
// but retargeted: the teacher's Retryer wraps an arbitrary func() error,
// while this Wrapper specifically retries whole-batch BatchExecutor
// calls and applies the closed retry-decision table of spec.md §4.3
// instead of a caller-supplied predicate.
package retry

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/executor"
	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/observability"
	"github.com/Dieugene/llm-gateway/queue"
)

// Policy configures the backoff schedule.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	Jitter            time.Duration
}

// DefaultPolicy mirrors the teacher's DefaultRetryPolicy defaults, scaled
// to the gateway's millisecond-level batch latencies.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		InitialDelay:      200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            50 * time.Millisecond,
	}
}

// Wrapper decorates an inner executor.BatchExecutor with retry-on-
// transient-failure. It satisfies executor.BatchExecutor itself so it
// composes with ratelimit.Wrapper in the fixed order spec.md §4.6
// describes (rate-limit outermost, retry next, base innermost).
type Wrapper struct {
	inner   executor.BatchExecutor
	policy  Policy
	log     *observability.JSONLWriter
	logger  *zap.Logger
	metrics *observability.Metrics
	sleep   func(context.Context, time.Duration) error
}

// New creates a retry Wrapper around inner.
func New(inner executor.BatchExecutor, policy Policy, log *observability.JSONLWriter, logger *zap.Logger) *Wrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrapper{
		inner:  inner,
		policy: policy,
		log:    log,
		logger: logger.With(zap.String("component", "retry")),
		sleep:  sleepCtx,
	}
}

// SetMetrics attaches Prometheus instrumentation; nil (the default)
// disables it.
func (w *Wrapper) SetMetrics(m *observability.Metrics) {
	w.metrics = m
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

// ExecuteBatch retries the whole batch against the inner executor up to
// policy.MaxRetries+1 times. Each attempt runs against fresh shadow
// handles so a retried attempt can replace a prior failed outcome
// without double-resolving the caller's real handle; only the final
// attempt's outcomes are delivered to the real handles.
func (w *Wrapper) ExecuteBatch(ctx context.Context, cfg gatewaytypes.ModelConfig, batch []queue.Entry) {
	attempt := 0
	for {
		shadow := shadowBatch(batch)
		w.inner.ExecuteBatch(ctx, cfg, shadow)

		outcomes := collectOutcomes(ctx, shadow)
		retryable, firstErr := classify(outcomes)

		if !retryable || attempt >= w.policy.MaxRetries {
			deliver(batch, outcomes)
			return
		}

		if w.log != nil {
			w.log.WriteRetry(observability.RetryRecord{
				Model:   cfg.ModelName,
				Attempt: attempt,
				Error:   errString(firstErr),
			})
		}
		if w.metrics != nil {
			w.metrics.RetriesTotal.WithLabelValues(cfg.ModelName).Inc()
		}

		delay := w.backoffDelay(attempt)
		if err := w.sleep(ctx, delay); err != nil {
			deliver(batch, cancelledOutcomes(batch))
			return
		}
		attempt++
	}
}

func (w *Wrapper) backoffDelay(attempt int) time.Duration {
	base := float64(w.policy.InitialDelay) * pow(w.policy.BackoffMultiplier, attempt)
	jitter := float64(0)
	if w.policy.Jitter > 0 {
		jitter = (rand.Float64()*2 - 1) * float64(w.policy.Jitter)
	}
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// shadowBatch builds a parallel batch of fresh handles, one per real
// entry, preserving Request so the inner executor operates identically.
func shadowBatch(batch []queue.Entry) []queue.Entry {
	shadow := make([]queue.Entry, len(batch))
	for i, e := range batch {
		h := queue.NewHandle()
		shadow[i] = queue.Entry{Request: e.Request, Handle: h}
	}
	return shadow
}

type outcome struct {
	resp gatewaytypes.Response
	err  error
}

func collectOutcomes(ctx context.Context, shadow []queue.Entry) []outcome {
	outcomes := make([]outcome, len(shadow))
	for i, e := range shadow {
		resp, err := e.Handle.Wait(ctx)
		outcomes[i] = outcome{resp: resp, err: err}
	}
	return outcomes
}

// classify reports whether the batch as a whole should be retried: any
// single retryable failure triggers a retry of the whole batch, matching
// the Retry Wrapper's whole-batch semantics.
func classify(outcomes []outcome) (retryable bool, firstErr error) {
	for _, o := range outcomes {
		if o.err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = o.err
		}
		if gatewayerr.IsCancelled(o.err) {
			return false, o.err
		}
		if gatewayerr.IsRetryable(o.err) {
			retryable = true
		}
	}
	return retryable, firstErr
}

func deliver(batch []queue.Entry, outcomes []outcome) {
	for i, e := range batch {
		if outcomes[i].err != nil {
			e.Handle.Reject(outcomes[i].err)
			continue
		}
		e.Handle.Resolve(outcomes[i].resp)
	}
}

func cancelledOutcomes(batch []queue.Entry) []outcome {
	outcomes := make([]outcome, len(batch))
	for i := range batch {
		outcomes[i] = outcome{err: gatewayerr.New(gatewayerr.Cancelled, "retry backoff interrupted")}
	}
	return outcomes
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
