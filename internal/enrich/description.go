package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/raine/lease-to-own/internal/llm"
)

// PurposeDescription labels description calls in logs and in the mock provider.
const PurposeDescription = "description"

// DescriptionGenerator writes the long-form listing description.
type DescriptionGenerator struct {
	provider llm.Provider
}

// NewDescriptionGenerator creates a DescriptionGenerator backed by provider.
func NewDescriptionGenerator(provider llm.Provider) *DescriptionGenerator {
	return &DescriptionGenerator{provider: provider}
}

// Describe returns the provider's prose, trimmed and without markdown fences.
func (d *DescriptionGenerator) Describe(ctx context.Context, in ListingInput, tags []string) (string, error) {
	prompt := formatPrompt(descriptionPrompt,
		orNone(in.Title),
		orNone(in.Address),
		formatNumber(in.Beds),
		formatNumber(in.Baths),
		formatNumber(in.Sqft),
		orNone(in.Description),
		joinTags(tags),
	)

	resp, err := d.provider.Generate(ctx, llm.Request{Prompt: prompt, Purpose: PurposeDescription})
	if err != nil {
		return "", fmt.Errorf("description call failed: %w", err)
	}

	text := llm.StripCodeFences(strings.TrimSpace(resp.Text))
	if text == "" {
		return "", fmt.Errorf("empty description from %s", resp.Model)
	}
	return text, nil
}
