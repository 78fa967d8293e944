package llm

import (
	"context"
	"fmt"
)

// Image is an inline image attached to a provider request.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single prompt, optionally with inline images.
type Request struct {
	Prompt string
	Images []Image
	// Purpose labels the call in logs (e.g. "vision", "pricing").
	Purpose string
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Response is the raw text returned by a provider. Providers give no schema
// guarantee; callers that expect JSON parse it themselves.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider issues a single prompt to a generative AI service.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config selects and configures a Provider.
type Config struct {
	Name            string // "gemini" or "anthropic"
	GeminiAPIKey    string
	AnthropicAPIKey string
}

// New creates the provider named in cfg.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Name {
	case "", ProviderGemini:
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey)
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.AnthropicAPIKey)
	default:
		return nil, fmt.Errorf("unknown ai provider: %q", cfg.Name)
	}
}

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
