// Package circuitbreaker implements an optional fourth policy layer for
// the gateway's Batch Executor stack: disabled by default, it trips open
// after a run of consecutive batch failures and short-circuits further
// calls to a struggling provider until a reset timeout elapses.
//
// Grounded on breaker/CircuitBreaker/Config of
// _examples/BaSui01-agentflow/llm/circuitbreaker/breaker.go: same
// Closed/Open/HalfOpen state machine and consecutive-failure threshold;
// unlike the teacher, it puts no timeout of its own on the wrapped call.
// The gateway's spec does not require a
// circuit breaker; this is a teacher-grounded enrichment wired in as an
// executor.BatchExecutor decorator, which the facade only installs when
// a model's config opts in.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/executor"
	"github.com/Dieugene/llm-gateway/gatewayerr"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/queue"
)

// State is one of the three circuit-breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures trip/reset behavior.
type Config struct {
	Threshold        int           // consecutive batch failures before tripping open
	ResetTimeout     time.Duration // Open -> HalfOpen wait
	HalfOpenMaxCalls int           // trial calls allowed while HalfOpen
}

// DefaultConfig mirrors the teacher's DefaultConfig, scaled for batch
// rather than single-request calls.
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Wrapper decorates an inner executor.BatchExecutor with the circuit
// breaker. It satisfies executor.BatchExecutor, so it can sit between
// the retry wrapper and the base executor when enabled for a model.
type Wrapper struct {
	inner  executor.BatchExecutor
	cfg    Config
	logger *zap.Logger

	mu              sync.Mutex
	state           State
	failureCount    int
	openedAt        time.Time
	halfOpenCalls   int
}

// New creates a circuit-breaker Wrapper around inner.
func New(inner executor.BatchExecutor, cfg Config, logger *zap.Logger) *Wrapper {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultConfig().HalfOpenMaxCalls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrapper{inner: inner, cfg: cfg, state: StateClosed, logger: logger.With(zap.String("component", "circuitbreaker"))}
}

// ExecuteBatch rejects the whole batch immediately while the breaker is
// Open and the reset timeout has not yet elapsed; otherwise it delegates
// to the inner executor and updates the failure/success count from the
// outcome.
func (w *Wrapper) ExecuteBatch(ctx context.Context, cfg gatewaytypes.ModelConfig, batch []queue.Entry) {
	if !w.beforeCall() {
		rejectAll(batch, gatewayerr.Newf(gatewayerr.Transient, "circuit breaker open for model %s", cfg.ModelName).WithRetryable(true))
		return
	}

	w.inner.ExecuteBatch(ctx, cfg, batch)
	w.afterCall(anyRejected(batch))
}

// beforeCall reports whether a call should proceed given the current
// state, transitioning Open -> HalfOpen once ResetTimeout has elapsed.
func (w *Wrapper) beforeCall() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(w.openedAt) < w.cfg.ResetTimeout {
			return false
		}
		w.state = StateHalfOpen
		w.halfOpenCalls = 0
		return true
	case StateHalfOpen:
		if w.halfOpenCalls >= w.cfg.HalfOpenMaxCalls {
			return false
		}
		w.halfOpenCalls++
		return true
	default:
		return true
	}
}

func (w *Wrapper) afterCall(failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if failed {
		w.failureCount++
		if w.state == StateHalfOpen || w.failureCount >= w.cfg.Threshold {
			w.state = StateOpen
			w.openedAt = time.Now()
		}
		return
	}

	if w.state == StateHalfOpen {
		w.state = StateClosed
	}
	w.failureCount = 0
}

func rejectAll(batch []queue.Entry, err error) {
	for _, e := range batch {
		e.Handle.Reject(err)
	}
}

func anyRejected(batch []queue.Entry) bool {
	for _, e := range batch {
		if _, ok := e.Handle.Peek(); !ok {
			return true
		}
	}
	return false
}
