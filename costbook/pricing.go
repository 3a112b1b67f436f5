package costbook

// PricePerMillionTokens is a model's per-million-token input/output price
// in USD, the unit most provider pricing pages quote in.
type PricePerMillionTokens struct {
	Input  float64
	Output float64
}

// defaultPricing is a representative model-pricing table. It exists so the
// core can always compute a non-zero cost for a real completion even when
// a provider's response omits pricing — cost is always computed by the core
// even when the provider itself reports zero.
var defaultPricing = map[string]PricePerMillionTokens{
	"gpt-4o":              {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":         {Input: 0.15, Output: 0.60},
	"claude-3-5-sonnet":   {Input: 3.00, Output: 15.00},
	"claude-3-5-haiku":    {Input: 0.80, Output: 4.00},
	"gemini-1.5-pro":      {Input: 1.25, Output: 5.00},
	"gemini-1.5-flash":    {Input: 0.075, Output: 0.30},
}

// fallbackPricing is used for any model name not present in defaultPricing,
// so ComputeCost never returns zero for a nonzero token count regardless of
// which model string the provider reports.
var fallbackPricing = PricePerMillionTokens{Input: 1.00, Output: 3.00}

// PricingTable resolves a model name to its per-million-token price,
// falling back to a conservative default for unknown models.
type PricingTable struct {
	prices map[string]PricePerMillionTokens
}

// NewPricingTable returns a table seeded with defaultPricing. Callers may
// overlay deployment-specific prices with Set.
func NewPricingTable() *PricingTable {
	cp := make(map[string]PricePerMillionTokens, len(defaultPricing))
	for k, v := range defaultPricing {
		cp[k] = v
	}
	return &PricingTable{prices: cp}
}

// Set overrides (or adds) the price for a model.
func (t *PricingTable) Set(model string, price PricePerMillionTokens) {
	t.prices[model] = price
}

// ComputeCost returns the USD cost of inputTokens/outputTokens against
// model's price, using fallbackPricing when model is unrecognized. Always
// returns a positive cost for a nonzero token count.
func (t *PricingTable) ComputeCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := t.prices[model]
	if !ok {
		price = fallbackPricing
	}
	inputCost := float64(inputTokens) / 1_000_000 * price.Input
	outputCost := float64(outputTokens) / 1_000_000 * price.Output
	return inputCost + outputCost
}
