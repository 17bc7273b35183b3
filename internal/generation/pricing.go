package generation

import (
	"strings"

	"github.com/edulane/coursegen/internal/llm"
)

// ModelPrice is the USD price per 1000 tokens, input and output billed separately.
type ModelPrice struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Pricing maps model names to prices. The empty key is the fallback for unknown models.
type Pricing map[string]ModelPrice

// NewPricing returns a table with one configured model that also serves as the fallback.
func NewPricing(model string, price ModelPrice) Pricing {
	p := Pricing{"": price}
	if model != "" {
		p[model] = price
	}

	return p
}

// Price returns the price for model. Versioned names such as "gpt-4o-mini-2024-07-18"
// match their longest configured prefix.
func (p Pricing) Price(model string) ModelPrice {
	if price, ok := p[model]; ok {
		return price
	}

	best := ""

	for name := range p {
		if name != "" && strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}

	return p[best]
}

// Cost returns the USD cost of usage on model.
func (p Pricing) Cost(model string, usage llm.Usage) float64 {
	if p == nil {
		return 0
	}

	price := p.Price(model)

	return float64(usage.PromptTokens)/1000*price.InputPer1K +
		float64(usage.CompletionTokens)/1000*price.OutputPer1K
}
