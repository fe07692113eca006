// Package observability implements the gateway's append-only JSONL
// logging for batches, errors, retries, rate-limit decisions, and
// responses.
//
// Grounded on FileAuditBackend
// (_examples/BaSui01-agentflow/llm/tools/audit.go): per-stream file
// opened with os.O_CREATE|os.O_WRONLY|os.O_APPEND, one json.Marshal'd
// record per line. Unlike the teacher's audit backend, each gateway
// stream writes to its own fixed file name under a configured directory
// rather than rotating by date, and logging is silently a no-op when no
// directory is configured (spec.md's observability section).
package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// streamFile is a single append-only JSONL destination guarded by its
// own mutex, since *os.File is not safe for concurrent Write calls that
// must each land as one atomic line.
type streamFile struct {
	mu   sync.Mutex
	file *os.File
}

func (s *streamFile) write(logger *zap.Logger, stream string, v any) {
	if s == nil || s.file == nil {
		return
	}
	line, err := json.Marshal(v)
	if err != nil {
		logger.Warn("failed to marshal observability record", zap.String("stream", stream), zap.Error(err))
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		logger.Warn("failed to write observability record", zap.String("stream", stream), zap.Error(err))
	}
}

// JSONLWriter owns the gateway's five append-only observability streams.
// A JSONLWriter constructed with an empty directory is fully functional
// but every Write* call is a no-op, matching spec.md's "logging is
// disabled when no operator log directory is configured".
type JSONLWriter struct {
	logger    *zap.Logger
	batches   *streamFile
	errors    *streamFile
	retries   *streamFile
	rateLimit *streamFile
	responses *streamFile
}

// New opens (creating if necessary) the five JSONL streams under dir. An
// empty dir produces a disabled writer whose methods are no-ops.
func New(dir string, logger *zap.Logger) (*JSONLWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "observability"))

	w := &JSONLWriter{logger: logger}
	if dir == "" {
		return w, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	open := func(name string) (*streamFile, error) {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return &streamFile{file: f}, nil
	}

	var err error
	if w.batches, err = open("batches.jsonl"); err != nil {
		return nil, err
	}
	if w.errors, err = open("errors.jsonl"); err != nil {
		return nil, err
	}
	if w.retries, err = open("retries.jsonl"); err != nil {
		return nil, err
	}
	if w.rateLimit, err = open("rate_limits.jsonl"); err != nil {
		return nil, err
	}
	if w.responses, err = open("responses.jsonl"); err != nil {
		return nil, err
	}
	return w, nil
}

// BatchRecord is one line of batches.jsonl: the outcome of one batch
// executor invocation.
type BatchRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Model      string    `json:"model"`
	BatchSize  int       `json:"batch_size"`
	Success    bool      `json:"success"`
	LatencyMs  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
}

// ErrorRecord is one line of errors.jsonl: a terminal failure delivered
// to a caller.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Model     string    `json:"model"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// RetryRecord is one line of retries.jsonl: one failed attempt that is
// followed by a backoff and another attempt. The final attempt of a batch,
// whether it succeeds or exhausts the retry budget, writes no line here.
type RetryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Attempt   int       `json:"attempt"`
	Exhausted bool      `json:"exhausted,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// RateLimitRecord is one line of rate_limits.jsonl: an admit/delay/reject
// decision.
type RateLimitRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model"`
	Decision    string    `json:"decision"` // "admit", "delay", "reject"
	DelayMs     int64     `json:"delay_ms,omitempty"`
	RPMUsage    int       `json:"rpm_usage"`
	TPMUsage    int       `json:"tpm_usage"`
}

// ResponseRecord is one line of responses.jsonl: a successful completion
// delivered to a caller, optionally annotated with estimated cost.
type ResponseRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    int64     `json:"latency_ms"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
}

func (w *JSONLWriter) WriteBatch(r BatchRecord) {
	r.Timestamp = now()
	w.batches.write(w.logger, "batches", r)
}

func (w *JSONLWriter) WriteError(r ErrorRecord) {
	r.Timestamp = now()
	w.errors.write(w.logger, "errors", r)
}

func (w *JSONLWriter) WriteRetry(r RetryRecord) {
	r.Timestamp = now()
	w.retries.write(w.logger, "retries", r)
}

func (w *JSONLWriter) WriteRateLimit(r RateLimitRecord) {
	r.Timestamp = now()
	w.rateLimit.write(w.logger, "rate_limits", r)
}

func (w *JSONLWriter) WriteResponse(r ResponseRecord) {
	r.Timestamp = now()
	w.responses.write(w.logger, "responses", r)
}

// Close closes every open stream file. Safe to call on a disabled
// writer.
func (w *JSONLWriter) Close() error {
	for _, s := range []*streamFile{w.batches, w.errors, w.retries, w.rateLimit, w.responses} {
		if s != nil && s.file != nil {
			if err := s.file.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

var now = time.Now
