package reasoning

// Pricing is the USD cost per 1000 tokens for one model.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// modelPricing mirrors the gateway's published price list. Unknown models cost
// zero; the caller decides whether that warrants a log line.
var modelPricing = map[string]Pricing{
	"gpt-4o":            {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":       {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4-turbo":       {InputPer1K: 0.01, OutputPer1K: 0.03},
	"claude-3-5-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
}

// Cost computes the USD cost of one completion, keyed by model name and token
// counts. Returns 0 for models missing from the price list.
func Cost(model string, usage Usage) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}

	inputCost := float64(usage.PromptTokens) / 1000 * pricing.InputPer1K
	outputCost := float64(usage.CompletionTokens) / 1000 * pricing.OutputPer1K

	return inputCost + outputCost
}

// KnownModel reports whether the model has a pricing entry.
func KnownModel(model string) bool {
	_, ok := modelPricing[model]

	return ok
}
