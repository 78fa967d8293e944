package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/raine/lease-to-own/internal/llm"
	"github.com/raine/lease-to-own/internal/storage"
)

// ErrMalformedResponse is returned when a model reply that must be JSON
// cannot be parsed into the expected shape.
var ErrMalformedResponse = errors.New("malformed model response")

// PurposePricing labels pricing calls in logs and in the mock provider.
const PurposePricing = "pricing"

// PricingEstimator asks the provider for a market value estimate.
type PricingEstimator struct {
	provider llm.Provider
}

// NewPricingEstimator creates a PricingEstimator backed by provider.
func NewPricingEstimator(provider llm.Provider) *PricingEstimator {
	return &PricingEstimator{provider: provider}
}

// Estimate returns the parsed estimate. Replies that are not a JSON object
// of the requested shape fail with ErrMalformedResponse.
func (p *PricingEstimator) Estimate(ctx context.Context, in ListingInput, tags []string) (storage.PricingEstimate, error) {
	prompt := formatPrompt(pricingPrompt,
		formatNumber(in.Price),
		orNone(in.Address),
		orNone(in.Description),
		joinTags(tags),
	)

	resp, err := p.provider.Generate(ctx, llm.Request{Prompt: prompt, Purpose: PurposePricing})
	if err != nil {
		return storage.PricingEstimate{}, fmt.Errorf("pricing call failed: %w", err)
	}

	return parsePricing(resp.Text)
}

func parsePricing(text string) (storage.PricingEstimate, error) {
	jsonStr, err := llm.ExtractJSONObject(text)
	if err != nil {
		return storage.PricingEstimate{}, fmt.Errorf("%w: pricing: %v", ErrMalformedResponse, err)
	}

	var est storage.PricingEstimate
	if err := json.Unmarshal([]byte(jsonStr), &est); err != nil {
		return storage.PricingEstimate{}, fmt.Errorf("%w: pricing: %v", ErrMalformedResponse, err)
	}
	est.Confidence = strings.ToLower(strings.TrimSpace(est.Confidence))
	if !validLevel(est.Confidence) {
		return storage.PricingEstimate{}, fmt.Errorf("%w: pricing: invalid confidence %q", ErrMalformedResponse, est.Confidence)
	}
	return est, nil
}

// validLevel reports whether s is one of low, medium or high.
func validLevel(s string) bool {
	switch s {
	case "low", "medium", "high":
		return true
	}
	return false
}
