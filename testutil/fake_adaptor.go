package testutil

import (
	"context"
	"sync"

	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

// FakeAdaptor is a scriptable adaptor.ProviderAdaptor for tests. Each
// call to Invoke pops the next entry from Responses (or Errors, if
// Errors[i] is non-nil); if both are exhausted it returns a zero-value
// Response with no error. Invocations are recorded in Calls for
// assertions on call count/order.
type FakeAdaptor struct {
	mu        sync.Mutex
	NameValue string
	Responses []gatewaytypes.Response
	Errors    []error
	Calls     []gatewaytypes.Request
	callIndex int

	// OnInvoke, if set, runs synchronously inside Invoke before it
	// returns, letting tests block or synchronize on a specific call
	// (e.g. sleeping to force a timeout/cancellation race).
	OnInvoke func(req gatewaytypes.Request)
}

// NewFakeAdaptor creates a FakeAdaptor named name.
func NewFakeAdaptor(name string) *FakeAdaptor {
	return &FakeAdaptor{NameValue: name}
}

func (f *FakeAdaptor) Name() string { return f.NameValue }

func (f *FakeAdaptor) Invoke(ctx context.Context, cfg gatewaytypes.ModelConfig, req gatewaytypes.Request) (gatewaytypes.Response, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	idx := f.callIndex
	f.callIndex++
	f.mu.Unlock()

	if f.OnInvoke != nil {
		f.OnInvoke(req)
	}

	if idx < len(f.Errors) && f.Errors[idx] != nil {
		return gatewaytypes.Response{}, f.Errors[idx]
	}
	if idx < len(f.Responses) {
		resp := f.Responses[idx]
		resp.RequestID = req.RequestID
		return resp, nil
	}
	return gatewaytypes.Response{RequestID: req.RequestID}, nil
}

// CallCount returns the number of Invoke calls made so far.
func (f *FakeAdaptor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
