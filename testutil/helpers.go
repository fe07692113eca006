// Package testutil provides shared test helpers for the gateway's
// package-level tests.
//
// Trimmed from _examples/BaSui01-agentflow/testutil/helpers.go: kept the
// context/channel/eventual-assertion helpers that are generic across any
// concurrent Go system; dropped the agent-framework-specific helpers
// (message/tool-call equality against the agent package's types, stream
// chunk collection) that have no equivalent in the gateway's domain.
package testutil

import (
	"context"
	"testing"
	"time"
)

// TestContext returns a context with a generous default timeout, for
// tests that exercise goroutines and need headroom for scheduling.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout returns a context bounded by d instead of the
// default timeout, for tests that specifically exercise deadline
// behavior.
func TestContextWithTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns a context that is already cancelled, for
// tests exercising cooperative-cancellation paths.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// WaitForChannel blocks until ch yields a value or timeout elapses,
// failing the test on timeout.
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %s waiting for channel value", timeout)
		var zero T
		return zero
	}
}

// AssertEventuallyTrue polls cond until it returns true or timeout
// elapses, failing the test on timeout.
func AssertEventuallyTrue(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition did not become true within %s", timeout)
}

// AssertEventuallyEqual polls got until it equals want or timeout
// elapses, failing the test on timeout.
func AssertEventuallyEqual[T comparable](t *testing.T, timeout time.Duration, want T, got func() T) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("value did not become %v within %s (last was %v)", want, timeout, got())
}
