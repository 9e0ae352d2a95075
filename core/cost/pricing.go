package cost

import "fmt"

// Default per-1K-token prices in USD, used when FINLLM_INPUT_PRICE_PER_1K and
// FINLLM_OUTPUT_PRICE_PER_1K are not set.
const (
	DefaultInputPer1K  = 0.05
	DefaultOutputPer1K = 0.15
)

// Pricing is the price of a model in USD per 1,000 tokens.
//
// Example:
//
//	pricing := cost.Pricing{InputPer1K: 0.05, OutputPer1K: 0.15}
//	pricing.Estimate(300, 150) // 0.0375
type Pricing struct {
	// InputPer1K is the cost in USD per 1,000 prompt tokens.
	InputPer1K float64 `json:"input_per_1k" yaml:"input_per_1k"`

	// OutputPer1K is the cost in USD per 1,000 completion tokens.
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// DefaultPricing returns the default rates.
func DefaultPricing() Pricing {
	return Pricing{InputPer1K: DefaultInputPer1K, OutputPer1K: DefaultOutputPer1K}
}

// InputCost calculates the cost of the given number of input tokens.
func (pricing Pricing) InputCost(tokens int) float64 {
	return (float64(tokens) / 1000.0) * pricing.InputPer1K
}

// OutputCost calculates the cost of the given number of output tokens.
func (pricing Pricing) OutputCost(tokens int) float64 {
	return (float64(tokens) / 1000.0) * pricing.OutputPer1K
}

// Estimate returns the total cost of a call:
// (in/1000)*InputPer1K + (out/1000)*OutputPer1K.
func (pricing Pricing) Estimate(inputTokens, outputTokens int) float64 {
	return pricing.InputCost(inputTokens) + pricing.OutputCost(outputTokens)
}

// String returns a formatted string representation of the rates.
func (pricing Pricing) String() string {
	return fmt.Sprintf("Input: $%.4f/1K, Output: $%.4f/1K", pricing.InputPer1K, pricing.OutputPer1K)
}
