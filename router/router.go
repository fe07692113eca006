// Package router implements the gateway's Response Router: a request-ID
// keyed registry of one-shot completion handles, resolved or rejected
// exactly once.
//
// Grounded on the pendingRequest/response-channel registry pattern of
// _examples/BaSui01-agentflow/llm/batch/processor.go, generalized from a
// single in-flight batch to a long-lived registry addressable by
// RequestID so a batch executor running on a different goroutine can
// deliver results asynchronously.
package router

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/queue"
)

// Router tracks in-flight request handles by RequestID and delivers
// exactly one resolution to each.
type Router struct {
	mu      sync.Mutex
	entries map[string]*queue.Handle
	logger  *zap.Logger
}

// New creates an empty Router.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		entries: make(map[string]*queue.Handle),
		logger:  logger.With(zap.String("component", "router")),
	}
}

// Register associates requestID with handle. A duplicate RequestID
// overwrites the prior association; callers are responsible for ensuring
// RequestID uniqueness among concurrently pending requests.
func (r *Router) Register(requestID string, handle *queue.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[requestID] = handle
}

// Resolve delivers resp to the handle registered under resp.RequestID, if
// any, and removes the registration. Resolving an unknown or
// already-resolved RequestID is a no-op (idempotence, invariant 4 of the
// gateway's data model).
func (r *Router) Resolve(resp gatewaytypes.Response) {
	h := r.take(resp.RequestID)
	if h == nil {
		r.logger.Debug("resolve of unknown or already-resolved request", zap.String("request_id", resp.RequestID))
		return
	}
	h.Resolve(resp)
}

// take removes and returns the handle registered under requestID, or nil.
func (r *Router) take(requestID string) *queue.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[requestID]
	if !ok {
		return nil
	}
	delete(r.entries, requestID)
	return h
}

// Reject delivers err to the handle registered under requestID, if any,
// and removes the registration. Idempotent like Resolve.
func (r *Router) Reject(requestID string, err error) {
	h := r.take(requestID)
	if h == nil {
		r.logger.Debug("reject of unknown or already-resolved request", zap.String("request_id", requestID))
		return
	}
	h.Reject(err)
}

// Pending reports the number of currently registered, unresolved handles.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
