// Package executor implements the gateway's Batch Executor: the
// component that takes a formed batch of queued requests and dispatches
// each to a ProviderAdaptor.
//
// The BatchExecutor interface is deliberately small so that retry and
// rate-limit concerns can each be a decorator implementing the same
// interface, composed around a Base executor — the policy-layering-via-
// interfaces style the gateway uses in place of the teacher's single
// BatchProcessor that bakes retry directly into its worker loop
// (_examples/BaSui01-agentflow/llm/batch/processor.go). Base below is the
// innermost layer; see retry.Wrapper and ratelimit.Wrapper for the
// decorators.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/adaptor"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/queue"
)

// BatchExecutor runs one formed batch of entries against cfg's provider
// and resolves or rejects each entry's Handle. It never panics on a
// per-entry failure: every entry is guaranteed exactly one Resolve or
// Reject call before ExecuteBatch returns.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, cfg gatewaytypes.ModelConfig, batch []queue.Entry)
}

// Base is the innermost BatchExecutor: it calls the adaptor once per
// entry, sequentially, with no retry or rate-limit policy of its own.
type Base struct {
	Adaptor adaptor.ProviderAdaptor
	Logger  *zap.Logger
}

// New creates a Base executor over adp.
func New(adp adaptor.ProviderAdaptor, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{Adaptor: adp, Logger: logger.With(zap.String("component", "executor"))}
}

// ExecuteBatch invokes the adaptor once per entry, in submission order,
// and resolves/rejects each entry's handle with the result. The gateway
// adaptors in this tree have no native multi-request batch call, so this
// is the "sequential calls" fallback the Batch Executor's spec allows;
// a per-request adaptor failure only fails that request's handle — it
// does not abort sibling entries in the same batch.
func (b *Base) ExecuteBatch(ctx context.Context, cfg gatewaytypes.ModelConfig, batch []queue.Entry) {
	for _, entry := range batch {
		entry := entry
		start := time.Now()
		resp, err := b.Adaptor.Invoke(ctx, cfg, entry.Request)
		if err != nil {
			entry.Handle.Reject(err)
			continue
		}
		resp.RequestID = entry.Request.RequestID
		resp.LatencyMs = time.Since(start).Milliseconds()
		entry.Handle.Resolve(resp)
	}
}
