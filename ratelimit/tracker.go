// Package ratelimit implements the gateway's sliding-window rate limiter.
//
// The teacher's llm/budget.TokenBudgetManager
// (_examples/BaSui01-agentflow/llm/budget/token_budget.go) tracks usage
// with atomic per-minute/hour/day counters that reset on a timer; it
// cannot answer "how long until the oldest sample expires", which the
// gateway's delay_until_admit operation requires. Tracker is therefore a
// fresh implementation using an explicit deque of timestamped samples,
// grounded on the teacher's constructor/mutex/zap-logger shape rather
// than its counting mechanism.
package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Window is the sliding interval over which RPM/TPM are measured.
const Window = 60 * time.Second

type sample struct {
	at     time.Time
	tokens int
}

// Tracker enforces a per-model requests-per-minute and tokens-per-minute
// budget using a sliding 60s window of recorded samples.
type Tracker struct {
	mu       sync.Mutex
	samples  *list.List // each Value is a sample, oldest at Front
	maxRPM   int        // 0 disables the RPM check
	maxTPM   int        // 0 disables the TPM check
	tokenSum int
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a Tracker enforcing maxRPM requests and maxTPM tokens per
// 60s sliding window. A zero bound disables that dimension's check.
func New(maxRPM, maxTPM int, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		samples: list.New(),
		maxRPM:  maxRPM,
		maxTPM:  maxTPM,
		now:     time.Now,
		logger:  logger.With(zap.String("component", "ratelimit")),
	}
}

// evictExpired drops samples older than Window relative to now. Caller
// must hold mu.
func (t *Tracker) evictExpired(now time.Time) {
	cutoff := now.Add(-Window)
	for e := t.samples.Front(); e != nil; {
		s := e.Value.(sample)
		if s.at.After(cutoff) {
			break
		}
		next := e.Next()
		t.tokenSum -= s.tokens
		t.samples.Remove(e)
		e = next
	}
}

// Admit reports whether a request estimated to cost estimatedTokens can
// be admitted right now without exceeding either bound.
func (t *Tracker) Admit(estimatedTokens int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.evictExpired(now)

	if t.maxRPM > 0 && t.samples.Len()+1 > t.maxRPM {
		return false
	}
	if t.maxTPM > 0 && t.tokenSum+estimatedTokens > t.maxTPM {
		return false
	}
	return true
}

// DelayUntilAdmit returns how long the caller must wait before Admit
// would return true for estimatedTokens, given the current sample set.
// A zero duration means Admit would succeed immediately.
func (t *Tracker) DelayUntilAdmit(estimatedTokens int) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.evictExpired(now)

	if (t.maxRPM <= 0 || t.samples.Len()+1 <= t.maxRPM) &&
		(t.maxTPM <= 0 || t.tokenSum+estimatedTokens <= t.maxTPM) {
		return 0
	}

	// The earliest a slot can free up is when the oldest sample expires.
	// Walk forward evicting hypothetically-expired samples until the
	// request would fit, or we exhaust the window.
	rpmCount := t.samples.Len()
	tpmSum := t.tokenSum

	for e := t.samples.Front(); e != nil; e = e.Next() {
		s := e.Value.(sample)
		expiresAt := s.at.Add(Window)
		rpmCount--
		tpmSum -= s.tokens

		rpmOK := t.maxRPM <= 0 || rpmCount+1 <= t.maxRPM
		tpmOK := t.maxTPM <= 0 || tpmSum+estimatedTokens <= t.maxTPM
		if rpmOK && tpmOK {
			if expiresAt.Before(now) {
				return 0
			}
			return expiresAt.Sub(now)
		}
	}

	// Every sample expired and the request still wouldn't fit: its own
	// estimated cost alone exceeds maxTPM, so no amount of waiting admits
	// it. Report unsatisfiable (spec.md §4.4) rather than the full window,
	// so the wrapper rejects instead of sleeping 60s and sending it anyway.
	if t.maxTPM > 0 && estimatedTokens > t.maxTPM {
		return 0
	}

	// Otherwise every sample must expire before this request fits. Wait
	// out the full window.
	return Window
}

// Record appends a sample of estimatedTokens consumed at time now. Called
// once per admitted request, independent of Admit, so Admit/Record races
// under concurrent workers are tolerated as approximate throttling rather
// than an exact guarantee (see the gateway's Open Question on this).
func (t *Tracker) Record(tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.evictExpired(now)
	t.samples.PushBack(sample{at: now, tokens: tokens})
	t.tokenSum += tokens
}

// Usage reports the current request count and token sum within the
// sliding window, for observability logging.
func (t *Tracker) Usage() (requests, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictExpired(t.now())
	return t.samples.Len(), t.tokenSum
}
