package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// withFakeClock swaps t.now for a controllable clock and returns a
// function to advance it.
func withFakeClock(tr *Tracker) (advance func(time.Duration)) {
	current := time.Unix(0, 0)
	tr.now = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}

func TestAdmit_AllowsUnderBothLimits(t *testing.T) {
	tr := New(5, 1000, zap.NewNop())
	assert.True(t, tr.Admit(100))
}

func TestAdmit_RejectsOverRPM(t *testing.T) {
	tr := New(2, 0, zap.NewNop())
	advance := withFakeClock(tr)

	tr.Record(10)
	advance(time.Second)
	tr.Record(10)

	assert.False(t, tr.Admit(10), "third request should exceed max_rpm=2")
}

func TestAdmit_RejectsOverTPM(t *testing.T) {
	tr := New(0, 100, zap.NewNop())
	withFakeClock(tr)

	tr.Record(90)
	assert.False(t, tr.Admit(20), "90+20 exceeds max_tpm=100")
	assert.True(t, tr.Admit(10), "90+10 fits within max_tpm=100")
}

func TestWindow_EvictsSamplesOlderThan60s(t *testing.T) {
	tr := New(1, 0, zap.NewNop())
	advance := withFakeClock(tr)

	tr.Record(5)
	assert.False(t, tr.Admit(1), "window still holds the one sample, at RPM limit")

	advance(Window + time.Millisecond)
	assert.True(t, tr.Admit(1), "sample should have rolled off the 60s window")
}

func TestDelayUntilAdmit_ZeroWhenAlreadyAdmittable(t *testing.T) {
	tr := New(5, 1000, zap.NewNop())
	assert.Equal(t, time.Duration(0), tr.DelayUntilAdmit(10))
}

func TestDelayUntilAdmit_WaitsForOldestSampleToExpire(t *testing.T) {
	tr := New(1, 0, zap.NewNop())
	advance := withFakeClock(tr)

	tr.Record(5)
	delay := tr.DelayUntilAdmit(1)

	assert.True(t, delay > 0 && delay <= Window)

	advance(delay)
	assert.True(t, tr.Admit(1))
}

func TestDelayUntilAdmit_ZeroWhenRequestAloneExceedsTPM(t *testing.T) {
	tr := New(0, 1000, zap.NewNop())
	withFakeClock(tr)

	assert.Equal(t, time.Duration(0), tr.DelayUntilAdmit(5000),
		"no amount of waiting admits a request whose own cost exceeds max_tpm")
}

func TestDelayUntilAdmit_ZeroWhenRequestAloneExceedsTPMAfterEviction(t *testing.T) {
	tr := New(0, 1000, zap.NewNop())
	advance := withFakeClock(tr)

	tr.Record(200)
	advance(time.Second)

	assert.Equal(t, time.Duration(0), tr.DelayUntilAdmit(5000),
		"evicting every existing sample still leaves the request over max_tpm")
}

func TestUsage_ReportsCurrentWindowTotals(t *testing.T) {
	tr := New(0, 0, zap.NewNop())
	withFakeClock(tr)

	tr.Record(10)
	tr.Record(15)

	reqs, tokens := tr.Usage()
	assert.Equal(t, 2, reqs)
	assert.Equal(t, 25, tokens)
}
