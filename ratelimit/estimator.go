package ratelimit

import (
	"github.com/Dieugene/llm-gateway/gatewaytypes"
	"github.com/Dieugene/llm-gateway/tokenizer"
)

// RequestEstimator counts a Request's input-token cost using the
// registered tokenizer for its model, falling back to the CJK-aware
// estimator. Implements Estimator.
//
// Grounded on spec.md §4.4's token-counting rule: sum over messages of a
// tokenizer applied to content, plus (if tools present) the tokenizer
// applied to each tool's description and serialized parameters.
type RequestEstimator struct{}

// NewRequestEstimator creates a RequestEstimator.
func NewRequestEstimator() *RequestEstimator {
	return &RequestEstimator{}
}

func (RequestEstimator) CountRequest(req gatewaytypes.Request) int {
	t := tokenizer.GetOrEstimator(req.Model)

	msgs := make([]tokenizer.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}

	total, err := t.CountMessages(msgs)
	if err != nil {
		total = fallbackCount(req)
	}

	for _, tool := range req.Tools {
		n, err := t.CountTokens(tool.Description)
		if err != nil {
			n = tokenizer.CharFloor(tool.Description)
		}
		total += n
		total += tokenizer.CharFloor(string(tool.Parameters))
	}

	return total
}

func fallbackCount(req gatewaytypes.Request) int {
	total := 0
	for _, m := range req.Messages {
		total += tokenizer.CharFloor(m.Content)
	}
	return total
}
