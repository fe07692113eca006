package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dieugene/llm-gateway/executor"
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/queue"
	"github.com/Dieugene/llm-gateway/testutil"
)

type flatEstimator struct{ tokens int }

func (f flatEstimator) CountRequest(gatewaytypes.Request) int { return f.tokens }

func TestWrapper_AdmitsWhenUnderLimits(t *testing.T) {
	adp := testutil.NewFakeAdaptor("fake")
	adp.Responses = []gatewaytypes.Response{{Content: "ok", Usage: &gatewaytypes.Usage{InputTokens: 10, OutputTokens: 5}}}
	base := executor.New(adp, zap.NewNop())

	tracker := New(10, 10000, zap.NewNop())
	withFakeClock(tracker)
	w := NewWrapper(base, tracker, flatEstimator{tokens: 100}, nil, zap.NewNop())

	batch := []queue.Entry{{Request: gatewaytypes.Request{RequestID: "a"}, Handle: queue.NewHandle()}}
	w.ExecuteBatch(context.Background(), gatewaytypes.ModelConfig{ModelName: "m"}, batch)

	resp, err := batch[0].Handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	reqs, tokens := tracker.Usage()
	assert.Equal(t, 1, reqs)
	assert.Equal(t, 15, tokens, "Record should use actual usage, not the pre-call estimate")
}

func TestWrapper_RejectsWhenDelayWouldExceedWindow(t *testing.T) {
	adp := testutil.NewFakeAdaptor("fake")
	base := executor.New(adp, zap.NewNop())

	// A single request alone exceeds max_tpm, so no wait within the
	// window ever admits it: delay_until_admit returns 0 per spec.md §4.4.
	tracker := New(0, 50, zap.NewNop())
	withFakeClock(tracker)
	w := NewWrapper(base, tracker, flatEstimator{tokens: 1000}, nil, zap.NewNop())

	batch := []queue.Entry{{Request: gatewaytypes.Request{RequestID: "a"}, Handle: queue.NewHandle()}}
	w.ExecuteBatch(context.Background(), gatewaytypes.ModelConfig{ModelName: "m"}, batch)

	_, err := batch[0].Handle.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, adp.CallCount(), "inner executor must not be called when rate limit is unsatisfiable")
}

func TestWrapper_SleepsOutOldSampleThenProceeds(t *testing.T) {
	adp := testutil.NewFakeAdaptor("fake")
	adp.Responses = []gatewaytypes.Response{{Content: "admitted"}}
	base := executor.New(adp, zap.NewNop())

	tracker := New(1, 0, zap.NewNop())
	advance := withFakeClock(tracker)
	tracker.Record(1) // consumes the single RPM slot

	wantDelay := tracker.DelayUntilAdmit(1)
	require.True(t, wantDelay > 0)

	w := NewWrapper(base, tracker, flatEstimator{tokens: 1}, nil, zap.NewNop())
	w.sleep = func(ctx context.Context, d time.Duration) error {
		assert.Equal(t, wantDelay, d)
		advance(d)
		return nil
	}

	batch := []queue.Entry{{Request: gatewaytypes.Request{RequestID: "a"}, Handle: queue.NewHandle()}}
	w.ExecuteBatch(context.Background(), gatewaytypes.ModelConfig{ModelName: "m"}, batch)

	resp, err := batch[0].Handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admitted", resp.Content)
	assert.Equal(t, 1, adp.CallCount())
}
