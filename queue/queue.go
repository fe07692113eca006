// Package queue implements the gateway's per-model request queue.
//
// Grounded on the worker/batch-accumulation loop of
// _examples/BaSui01-agentflow/llm/batch/processor.go, generalized so the
// batch deadline is armed once per forming batch, when CollectBatch takes
// the first entry off the queue, rather than reset after every subsequent
// entry. Time an entry spent queued before that is not counted against
// the deadline.
package queue

import (
	"context"
	"sync"

	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

// Handle is the one-shot completion primitive returned to a caller and
// resolved exactly once, either with a Response or an error. Unlike a
// plain single-consumer result channel, the completed value is retained
// so both the caller's Wait and an internal observer (e.g. the
// rate-limit wrapper recording actual usage after execution) can read it
// without racing to consume it.
type Handle struct {
	done chan struct{}
	once sync.Once
	mu   sync.RWMutex
	resp gatewaytypes.Response
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// NewHandle creates a standalone, unregistered Handle. Used by the retry
// wrapper to build shadow handles for a retried attempt, and by tests.
func NewHandle() *Handle {
	return newHandle()
}

// Resolve completes the handle with a Response. A second call is a no-op,
// matching the response router's idempotence requirement (spec.md §4.5).
func (h *Handle) Resolve(resp gatewaytypes.Response) {
	h.once.Do(func() {
		h.mu.Lock()
		h.resp = resp
		h.mu.Unlock()
		close(h.done)
	})
}

// Reject completes the handle with an error. A second call (whether via
// Resolve or Reject) is a no-op.
func (h *Handle) Reject(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}

// Wait blocks until the handle is resolved or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) (gatewaytypes.Response, error) {
	select {
	case <-h.done:
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.resp, h.err
	case <-ctx.Done():
		return gatewaytypes.Response{}, gatewayerr.New(gatewayerr.Cancelled, "caller context done").WithCause(ctx.Err())
	}
}

// Peek reports whether the handle completed successfully (Resolve, not
// Reject) and, if so, returns its Response. It never blocks: a false
// result means either not yet completed or completed with an error.
func (h *Handle) Peek() (gatewaytypes.Response, bool) {
	select {
	case <-h.done:
	default:
		return gatewaytypes.Response{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err != nil {
		return gatewaytypes.Response{}, false
	}
	return h.resp, true
}

// PeekErr reports whether the handle completed with an error and, if so,
// returns it. It never blocks: a false result means either not yet
// completed or completed successfully (use Peek for that case).
func (h *Handle) PeekErr() (error, bool) {
	select {
	case <-h.done:
	default:
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err == nil {
		return nil, false
	}
	return h.err, true
}

// Entry pairs a Request with its completion Handle, FIFO-ordered within
// the queue it was submitted to.
type Entry struct {
	Request gatewaytypes.Request
	Handle  *Handle
}

// Queue is one model's pending-request buffer. Submit never blocks;
// CollectBatch blocks for the first entry, then accumulates further
// entries up to batchSize or until batchTimeout elapses from the moment
// the first entry was taken off the queue, whichever comes first.
type Queue struct {
	mu      sync.Mutex
	pending []Entry
	notify  chan struct{}
}

// New creates an empty per-model Queue.
func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Submit appends (request, handle) to the queue and returns the handle.
// Never blocks.
func (q *Queue) Submit(req gatewaytypes.Request) *Entry {
	h := newHandle()
	entry := Entry{Request: req, Handle: h}

	q.mu.Lock()
	q.pending = append(q.pending, entry)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return &entry
}

// CollectBatch blocks until at least one entry is pending, then drains up
// to batchSize entries or whatever arrived before batchTimeout elapsed
// from the moment the first entry was drained — whichever bound is hit
// first. An entry that was already waiting when CollectBatch was called
// gets a deadline measured from that call, not from its Submit. The
// returned slice preserves submission order (FIFO within the batch).
func (q *Queue) CollectBatch(ctx context.Context, batchSize int, batchTimeout func() <-chan struct{}) ([]Entry, error) {
	if batchSize <= 0 {
		batchSize = gatewaytypes.DefaultBatchSize
	}

	// Suspension point: wait for the first entry.
	for {
		if batch, ok := q.drainUpTo(batchSize); ok {
			if len(batch) >= batchSize {
				return batch, nil
			}
			// Got a partial batch immediately; arm the deadline from now.
			return q.accumulateUntilDeadline(ctx, batch, batchSize, batchTimeout())
		}

		select {
		case <-q.notify:
			continue
		case <-ctx.Done():
			return nil, gatewayerr.New(gatewayerr.Cancelled, "queue collection cancelled").WithCause(ctx.Err())
		}
	}
}

// accumulateUntilDeadline keeps adding arriving entries to batch until
// either batchSize is reached or deadline fires.
func (q *Queue) accumulateUntilDeadline(ctx context.Context, batch []Entry, batchSize int, deadline <-chan struct{}) ([]Entry, error) {
	for len(batch) < batchSize {
		more, ok := q.drainUpTo(batchSize - len(batch))
		if ok {
			batch = append(batch, more...)
			continue
		}

		select {
		case <-q.notify:
			continue
		case <-deadline:
			return batch, nil
		case <-ctx.Done():
			return batch, gatewayerr.New(gatewayerr.Cancelled, "queue collection cancelled").WithCause(ctx.Err())
		}
	}
	return batch, nil
}

// drainUpTo removes up to n pending entries and returns them, along with
// whether anything was available.
func (q *Queue) drainUpTo(n int) ([]Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}

	if n >= len(q.pending) {
		batch := q.pending
		q.pending = nil
		return batch, true
	}

	batch := make([]Entry, n)
	copy(batch, q.pending[:n])
	q.pending = q.pending[n:]
	return batch, true
}

// Len returns the number of currently pending entries (diagnostics only).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RejectAll rejects every pending entry with err and empties the queue.
// Used by the facade on Stop to guarantee no silent drops.
func (q *Queue) RejectAll(err error) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, e := range pending {
		e.Handle.Reject(err)
	}
}
