// Package adaptor defines the provider-facing boundary the Batch Executor
// calls through: a single Invoke per request, independent of batching
// strategy.
//
// Grounded on the llm.Provider interface
// (_examples/BaSui01-agentflow/llm/provider.go), narrowed to the one
// operation the gateway needs. Concrete adaptors live in
// adaptor/openaicompat and adaptor/anthropic.
package adaptor

import (
	"context"

	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

// ProviderAdaptor invokes one underlying LLM provider for one Request and
// returns one Response. Implementations translate gatewaytypes.Request
// into the provider's wire format and its reply back into
// gatewaytypes.Response, mapping failures to *gatewayerr.Error.
type ProviderAdaptor interface {
	// Invoke performs a single completion call. ctx carries the batch
	// executor's deadline, not any individual caller's — callers only
	// observe results via the router, never ctx directly.
	Invoke(ctx context.Context, cfg gatewaytypes.ModelConfig, req gatewaytypes.Request) (gatewaytypes.Response, error)

	// Name identifies the adaptor for logging and metrics, e.g. "openai".
	Name() string
}
