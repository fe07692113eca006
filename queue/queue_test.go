package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

func TestSubmit_NeverBlocks(t *testing.T) {
	q := New()
	done := make(chan struct{})
	go func() {
		q.Submit(gatewaytypes.Request{RequestID: "r1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked")
	}
	assert.Equal(t, 1, q.Len())
}

func TestCollectBatch_ReturnsFullBatchWithoutWaitingForDeadline(t *testing.T) {
	q := New()
	for i := 0; i < 3; i++ {
		q.Submit(gatewaytypes.Request{RequestID: string(rune('a' + i))})
	}

	ctx := context.Background()
	never := func() <-chan struct{} { return make(chan struct{}) }

	batch, err := q.CollectBatch(ctx, 3, never)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
	assert.Equal(t, "a", batch[0].Request.RequestID)
	assert.Equal(t, "c", batch[2].Request.RequestID)
}

func TestCollectBatch_DeadlineArmedFromFirstEntry(t *testing.T) {
	q := New()
	q.Submit(gatewaytypes.Request{RequestID: "first"})

	deadline := make(chan struct{})
	timeoutCalls := 0
	timeoutFn := func() <-chan struct{} {
		timeoutCalls++
		close(deadline)
		return deadline
	}

	ctx := context.Background()
	batch, err := q.CollectBatch(ctx, 10, timeoutFn)

	require.NoError(t, err)
	assert.Equal(t, 1, timeoutCalls, "deadline must be armed exactly once per forming batch")
	assert.Len(t, batch, 1)
}

func TestCollectBatch_CancelledContextReturnsCancelledError(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.CollectBatch(ctx, 10, func() <-chan struct{} { return make(chan struct{}) })
	require.Error(t, err)
}

func TestHandle_DoubleResolveIsNoop(t *testing.T) {
	h := NewHandle()
	h.Resolve(gatewaytypes.Response{Content: "first"})
	h.Resolve(gatewaytypes.Response{Content: "second"})

	resp, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)
}

func TestHandle_ResolveThenRejectIsNoop(t *testing.T) {
	h := NewHandle()
	h.Resolve(gatewaytypes.Response{Content: "ok"})
	h.Reject(assertError())

	resp, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestHandle_PeekReflectsOutcome(t *testing.T) {
	h := NewHandle()
	_, ok := h.Peek()
	assert.False(t, ok, "unresolved handle should not peek true")

	h.Resolve(gatewaytypes.Response{Content: "done"})
	resp, ok := h.Peek()
	assert.True(t, ok)
	assert.Equal(t, "done", resp.Content)
}

func TestRejectAll_EmptiesQueueAndRejectsEveryHandle(t *testing.T) {
	q := New()
	e1 := q.Submit(gatewaytypes.Request{RequestID: "a"})
	e2 := q.Submit(gatewaytypes.Request{RequestID: "b"})

	q.RejectAll(assertError())

	assert.Equal(t, 0, q.Len())
	_, err1 := e1.Handle.Wait(context.Background())
	_, err2 := e2.Handle.Wait(context.Background())
	assert.Error(t, err1)
	assert.Error(t, err2)
}

func assertError() error {
	return &testErr{"boom"}
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
