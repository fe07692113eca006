// Package tokenizer counts the token cost of a Request for the Rate
// Limiter's admission checks (spec.md §4.4).
//
// Adapted nearly verbatim from
// _examples/BaSui01-agentflow/llm/tokenizer/{tokenizer,estimator,tiktoken}.go:
// same Tokenizer interface, registry, CJK-aware estimator, and
// tiktoken-backed exact counter for OpenAI models. The package-local
// Message type is kept for the same reason the teacher keeps one — it
// avoids an import cycle back to gatewaytypes for a package that is
// itself a leaf dependency of gatewaytypes consumers.
package tokenizer

import (
	"fmt"
	"sync"
)

// Tokenizer counts tokens for raw text and for a full message list.
type Tokenizer interface {
	CountTokens(text string) (int, error)
	CountMessages(messages []Message) (int, error)
	Name() string
}

// Message is a minimal role/content pair, independent of gatewaytypes.Message
// so this package stays dependency-free.
type Message struct {
	Role    string
	Content string
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Tokenizer)
)

// Register associates a Tokenizer with a model name.
func Register(model string, t Tokenizer) {
	mu.Lock()
	defer mu.Unlock()
	registry[model] = t
}

// Unregister removes any Tokenizer registered for model.
func Unregister(model string) {
	mu.Lock()
	defer mu.Unlock()
	delete(registry, model)
}

// Get returns the Tokenizer registered for model, trying a prefix match
// (e.g. "gpt-4o-mini" matches a "gpt-4o" registration) before giving up.
func Get(model string) (Tokenizer, error) {
	mu.RLock()
	defer mu.RUnlock()

	if t, ok := registry[model]; ok {
		return t, nil
	}
	for prefix, t := range registry {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// GetOrEstimator returns the registered Tokenizer for model, or a CJK-aware
// character estimator if none is registered.
func GetOrEstimator(model string) Tokenizer {
	if t, err := Get(model); err == nil {
		return t
	}
	return NewEstimator()
}
