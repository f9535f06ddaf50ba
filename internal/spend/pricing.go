// Package spend enforces per-tenant spending caps on billable AI operations
// and records realized costs in the usage ledger.
package spend

import "math"

// modelPricing holds per-model prices in cents. Token prices are per 1K
// tokens; image prices are per generated image. Estimates feed the pre-call
// cap gate only, never billing truth.
type modelPricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
	PerImage        float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o-mini": {PromptPer1K: 0.015, CompletionPer1K: 0.06},
	"gpt-4o":      {PromptPer1K: 0.25, CompletionPer1K: 1.0},
	"dall-e-3":    {PerImage: 4.0},
}

// defaultPricing is used for models absent from the table; priced like the
// most expensive chat model so an unknown model never slips under the cap.
var defaultPricing = modelPricing{PromptPer1K: 0.25, CompletionPer1K: 1.0, PerImage: 4.0}

// ChatCostCents returns the cost in cents for a chat completion with the
// given token counts, rounded up so fractional cents still count against
// the cap.
func ChatCostCents(model string, promptTokens, completionTokens int64) int64 {
	p, ok := pricingTable[model]
	if !ok {
		p = defaultPricing
	}
	cost := float64(promptTokens)/1000*p.PromptPer1K + float64(completionTokens)/1000*p.CompletionPer1K
	return int64(math.Ceil(cost))
}

// ImageCostCents returns the cost in cents for generating n images.
func ImageCostCents(model string, n int64) int64 {
	p, ok := pricingTable[model]
	if !ok {
		p = defaultPricing
	}
	return int64(math.Ceil(float64(n) * p.PerImage))
}

// EstimateChatTokens gives a coarse upper-bound token estimate for a prompt
// of the given character length plus the expected completion budget. Used
// only for the pre-call gate.
func EstimateChatTokens(promptChars int, completionBudget int64) (int64, int64) {
	// Roughly 4 characters per token for English text.
	promptTokens := int64(promptChars/4) + 1
	return promptTokens, completionBudget
}
