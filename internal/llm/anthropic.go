package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

const (
	anthropicModel     = "claude-haiku-4-5-20251001"
	anthropicMaxTokens = 2048
)

// Anthropic pricing (per million tokens)
const (
	anthropicInputPricePerMillion  = 0.80
	anthropicOutputPricePerMillion = 4.00
)

// AnthropicProvider uses the Anthropic Messages API for text and vision
// generation. Images are sent as base64 content blocks.
type AnthropicProvider struct {
	client sdk.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic-based provider.
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is not set")
	}
	return &AnthropicProvider{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropicModel,
	}, nil
}

// Generate implements Provider.
func (a *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		mimeType := img.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		blocks = append(blocks, sdk.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))

	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic call failed: %w", err)
	}

	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("empty response from anthropic")
	}

	usage := Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, anthropicInputPricePerMillion, anthropicOutputPricePerMillion)

	log.Info().
		Str("model", a.model).
		Str("purpose", req.Purpose).
		Int("imageCount", len(req.Images)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("anthropic llm call")

	return &Response{Text: sb.String(), Model: a.model, Usage: usage}, nil
}
