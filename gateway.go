// Package gateway assembles the LLM Gateway's components — per-model
// request queues, rate-limit trackers, a response router, and a
// retry/rate-limit-wrapped batch executor per model — behind a small
// public surface: Start, Stop, Request, RequestBatch.
//
// Grounded on the lifecycle style of Manager
// (_examples/BaSui01-agentflow/internal/server/manager.go): a
// constructor that validates/defaults config, a non-blocking Start that
// spawns background goroutines, and a Stop that signals cancellation and
// awaits their exit via sync.WaitGroup — adapted here to one worker
// goroutine per model instead of one HTTP listener.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/adaptor"
	"github.com/Dieugene/llm-gateway/circuitbreaker"
	"github.com/Dieugene/llm-gateway/executor"
	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/observability"
	"github.com/Dieugene/llm-gateway/queue"
	"github.com/Dieugene/llm-gateway/ratelimit"
	"github.com/Dieugene/llm-gateway/retry"
	"github.com/Dieugene/llm-gateway/router"
)

// ModelBinding associates one model's configuration with the
// ProviderAdaptor that serves it. CircuitBreaker is nil by default
// (disabled); set it to wrap the base executor with a trip-on-repeated-
// failure guard for providers known to degrade under load.
type ModelBinding struct {
	Config         gatewaytypes.ModelConfig
	Adaptor        adaptor.ProviderAdaptor
	CircuitBreaker *circuitbreaker.Config
}

// Gateway dispatches completion requests to per-model worker goroutines
// under micro-batching, retry, and rate-limit disciplines.
type Gateway struct {
	logger  *zap.Logger
	log     *observability.JSONLWriter
	router  *router.Router
	cost    *observability.CostCalculator
	metrics *observability.Metrics

	workers map[string]*modelWorker

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// SetCostCalculator attaches a cost calculator used to annotate
// responses.jsonl lines with an estimated USD cost (SPEC_FULL.md's
// supplemental cost-tracking enrichment). Nil disables annotation, which
// is also the default.
func (g *Gateway) SetCostCalculator(c *observability.CostCalculator) {
	g.cost = c
}

type modelWorker struct {
	model   string
	cfg     gatewaytypes.ModelConfig
	queue   *queue.Queue
	exec    executor.BatchExecutor
	tracker *ratelimit.Tracker
}

// New builds a Gateway from a set of model bindings. retryPolicy applies
// uniformly to every model; pass retry.DefaultPolicy() for reasonable
// defaults. metrics may be nil to disable Prometheus instrumentation.
func New(bindings map[string]ModelBinding, retryPolicy retry.Policy, log *observability.JSONLWriter, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "gateway"))

	g := &Gateway{
		logger:  logger,
		log:     log,
		metrics: metrics,
		router:  router.New(logger),
		workers: make(map[string]*modelWorker, len(bindings)),
	}

	estimator := ratelimit.NewRequestEstimator()

	for model, binding := range bindings {
		tracker := ratelimit.New(binding.Config.MaxRequestsPerMinute, binding.Config.MaxTokensPerMinute, logger)

		var inner executor.BatchExecutor = executor.New(binding.Adaptor, logger)
		if binding.CircuitBreaker != nil {
			inner = circuitbreaker.New(inner, *binding.CircuitBreaker, logger)
		}
		retried := retry.New(inner, retryPolicy, log, logger)
		retried.SetMetrics(metrics)
		rateLimited := ratelimit.NewWrapper(retried, tracker, estimator, log, logger)
		rateLimited.SetMetrics(metrics)

		g.workers[model] = &modelWorker{
			model:   model,
			cfg:     binding.Config,
			queue:   queue.New(),
			exec:    rateLimited,
			tracker: tracker,
		}
	}

	return g
}

// Start spawns one worker goroutine per configured model. Non-blocking.
func (g *Gateway) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel

	for _, w := range g.workers {
		w := w
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.runWorker(ctx, w)
		}()
	}
}

// runWorker is the per-model worker loop: Idle -> Collecting -> Forming
// -> Executing -> Idle | Cancelled.
func (g *Gateway) runWorker(ctx context.Context, w *modelWorker) {
	for {
		batch, err := w.queue.CollectBatch(ctx, w.cfg.BatchSize, func() <-chan struct{} {
			return afterChan(w.cfg.BatchTimeout)
		})
		if err != nil {
			if gatewayerr.IsCancelled(err) {
				// Entries already drained into a partial batch are no
				// longer in the queue, so Stop's RejectAll cannot reach them.
				for _, e := range batch {
					e.Handle.Reject(err)
				}
				return
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}

		start := time.Now()
		w.exec.ExecuteBatch(ctx, w.cfg, batch)
		g.logBatch(w.cfg.ModelName, batch, time.Since(start))

		for _, e := range batch {
			if resp, ok := e.Handle.Peek(); ok {
				g.router.Resolve(resp)
				g.logResponse(w.cfg.ModelName, resp)
				continue
			}
			if err, ok := e.Handle.PeekErr(); ok {
				g.router.Reject(e.Request.RequestID, err)
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func afterChan(d time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		time.Sleep(d)
		close(ch)
	}()
	return ch
}

func (g *Gateway) logBatch(model string, batch []queue.Entry, latency time.Duration) {
	success := true
	for _, e := range batch {
		if _, ok := e.Handle.Peek(); !ok {
			success = false
		}
	}

	if g.metrics != nil {
		outcome := "success"
		if !success {
			outcome = "failure"
		}
		g.metrics.BatchesTotal.WithLabelValues(model, outcome).Inc()
		g.metrics.BatchLatency.WithLabelValues(model).Observe(latency.Seconds())
	}

	if g.log == nil {
		return
	}
	g.log.WriteBatch(observability.BatchRecord{
		Model:     model,
		BatchSize: len(batch),
		Success:   success,
		LatencyMs: latency.Milliseconds(),
	})
}

func (g *Gateway) logResponse(model string, resp gatewaytypes.Response) {
	if g.metrics != nil {
		g.metrics.ResponsesTotal.WithLabelValues(model).Inc()
	}
	if g.log == nil {
		return
	}
	rec := observability.ResponseRecord{
		RequestID: resp.RequestID,
		Model:     model,
		LatencyMs: resp.LatencyMs,
	}
	if resp.Usage != nil {
		rec.InputTokens = resp.Usage.InputTokens
		rec.OutputTokens = resp.Usage.OutputTokens
		if g.cost != nil {
			rec.CostUSD = g.cost.Calculate(model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
	}
	g.log.WriteResponse(rec)
}

// Stop signals cancellation to every worker and awaits their exit.
// Pending handles across every model's queue are rejected with a
// cancellation error.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()

	cancelErr := gatewayerr.New(gatewayerr.Cancelled, "gateway stopped")
	for _, w := range g.workers {
		w.queue.RejectAll(cancelErr)
	}
}

// Request submits req and blocks until its Response is ready or ctx is
// cancelled. RequestID is assigned automatically if req.RequestID is
// empty.
func (g *Gateway) Request(ctx context.Context, req gatewaytypes.Request) (gatewaytypes.Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	w, ok := g.workers[req.Model]
	if !ok {
		return gatewaytypes.Response{}, gatewayerr.Newf(gatewayerr.UnknownModel, "unknown model: %s", req.Model)
	}
	if len(req.Messages) == 0 {
		return gatewaytypes.Response{}, gatewayerr.New(gatewayerr.ValidationError, "request must have at least one message")
	}

	entry := w.queue.Submit(req)
	g.router.Register(req.RequestID, entry.Handle)

	resp, err := entry.Handle.Wait(ctx)
	if err != nil && gatewayerr.IsCancelled(err) {
		g.router.Reject(req.RequestID, err)
	}
	if err != nil {
		g.logError(req, err)
	}
	return resp, err
}

func (g *Gateway) logError(req gatewaytypes.Request, err error) {
	kind := gatewayerr.KindOf(err)
	if g.metrics != nil {
		g.metrics.ErrorsTotal.WithLabelValues(req.Model, string(kind)).Inc()
	}
	if g.log == nil {
		return
	}
	g.log.WriteError(observability.ErrorRecord{
		RequestID: req.RequestID,
		Model:     req.Model,
		Kind:      string(kind),
		Message:   err.Error(),
	})
}

// batchResult pairs a Response with its originating index, so concurrent
// RequestBatch calls can be reassembled in input order.
type batchResult struct {
	index int
	resp  gatewaytypes.Response
	err   error
}

// RequestBatch submits every request concurrently via Request and
// returns results in input order. A per-request error is returned
// alongside its zero-value Response at the corresponding index; callers
// inspect each error independently.
func (g *Gateway) RequestBatch(ctx context.Context, requests []gatewaytypes.Request) ([]gatewaytypes.Response, []error) {
	results := make([]batchResult, len(requests))
	var wg sync.WaitGroup

	for i, req := range requests {
		i, req := i, req
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := g.Request(ctx, req)
			results[i] = batchResult{index: i, resp: resp, err: err}
		}()
	}
	wg.Wait()

	responses := make([]gatewaytypes.Response, len(requests))
	errs := make([]error, len(requests))
	for _, r := range results {
		responses[r.index] = r.resp
		errs[r.index] = r.err
	}
	return responses, errs
}
