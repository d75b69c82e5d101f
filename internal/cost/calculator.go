// Package cost estimates the USD cost of completion calls.
package cost

import (
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/model"
)

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Rates maps model IDs to pricing.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude returns the cost of usage billed against model. Unknown models cost 0.
func (c *Calculator) Claude(modelID string, u model.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[modelID]
	if !ok {
		return 0
	}
	perTok := func(n int, price float64) float64 { return float64(n) / 1e6 * price }
	return perTok(u.InputTokens, rate.Input) +
		perTok(u.OutputTokens, rate.Output) +
		perTok(u.CacheCreationTokens, rate.Input*rate.CacheWriteMul) +
		perTok(u.CacheReadTokens, rate.Input*rate.CacheReadMul)
}

// LogRun logs token usage and estimated cost for one extraction run.
func (c *Calculator) LogRun(modelID, fileName string, u model.TokenUsage) float64 {
	usd := c.Claude(modelID, u)
	zap.L().Info("cost attribution",
		zap.String("model", modelID),
		zap.String("file", fileName),
		zap.Int("input_tokens", u.InputTokens),
		zap.Int("output_tokens", u.OutputTokens),
		zap.Int("cache_write_tokens", u.CacheCreationTokens),
		zap.Int("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("estimated_cost_usd", usd),
	)
	return usd
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
	}
}
