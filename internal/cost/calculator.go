// Package cost attributes oracle token usage to dollars.
package cost

import (
	"sync"

	"go.uber.org/zap"
)

// Rates holds per-model oracle pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates

	mu    sync.Mutex
	spent float64
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost
}

// Log records token usage and estimated cost for one oracle call and adds
// it to the running total.
func (c *Calculator) Log(model, prompt string, input, output int64) {
	usd := c.Claude(model, input, output)
	c.mu.Lock()
	c.spent += usd
	c.mu.Unlock()

	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("prompt", prompt),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Float64("estimated_cost_usd", usd),
	)
}

// Spent returns the estimated spend logged since the calculator was created.
func (c *Calculator) Spent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spent
}

// WithOverrides returns a copy of r where every model in overrides replaces
// or adds to the built-in table.
func (r Rates) WithOverrides(overrides map[string]ModelRate) Rates {
	out := Rates{Anthropic: make(map[string]ModelRate, len(r.Anthropic)+len(overrides))}
	for k, v := range r.Anthropic {
		out.Anthropic[k] = v
	}
	for k, v := range overrides {
		out.Anthropic[k] = v
	}
	return out
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
	}
}
