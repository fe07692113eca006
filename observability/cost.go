package observability

import "sync"

// ModelPrice is the per-million-token cost for one model, split by
// input/output since providers price them differently.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// CostCalculator estimates USD cost for a completion's token usage.
//
// Grounded on CostCalculator
// (_examples/BaSui01-agentflow/llm/observability/cost.go): a mutex-guarded
// price table keyed by model name, seeded with the teacher's own
// illustrative prices; a model with no registered price costs 0. The gateway uses this purely to
// annotate responses.jsonl; it is not part of any billing system.
type CostCalculator struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewCostCalculator creates a calculator seeded with representative
// prices for common model families.
func NewCostCalculator() *CostCalculator {
	return &CostCalculator{
		prices: map[string]ModelPrice{
			"gpt-4o":            {InputPerMillion: 2.50, OutputPerMillion: 10.00},
			"gpt-4o-mini":       {InputPerMillion: 0.15, OutputPerMillion: 0.60},
			"gpt-4":             {InputPerMillion: 30.00, OutputPerMillion: 60.00},
			"claude-3-5-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
			"claude-3-haiku":    {InputPerMillion: 0.25, OutputPerMillion: 1.25},
		},
	}
}

// SetPrice registers or overrides the price for model.
func (c *CostCalculator) SetPrice(model string, price ModelPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[model] = price
}

// Calculate returns the estimated USD cost of inputTokens/outputTokens
// against model's registered price, or 0 if the model is unregistered.
func (c *CostCalculator) Calculate(model string, inputTokens, outputTokens int) float64 {
	c.mu.RLock()
	price, ok := c.prices[model]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*price.InputPerMillion +
		float64(outputTokens)/1_000_000*price.OutputPerMillion
}
