package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raine/lease-to-own/internal/llm"
	"github.com/raine/lease-to-own/internal/storage"
)

// PurposeFraud labels fraud assessment calls in logs and in the mock provider.
const PurposeFraud = "fraud"

// Risk level boundaries used when a reply carries only a numeric score.
const (
	mediumRiskScore = 34
	highRiskScore   = 67
)

// FraudAssessor asks the provider to rate a listing for fraud risk.
type FraudAssessor struct {
	provider llm.Provider
}

// NewFraudAssessor creates a FraudAssessor backed by provider.
func NewFraudAssessor(provider llm.Provider) *FraudAssessor {
	return &FraudAssessor{provider: provider}
}

// Assess sends the listing document, minus previous AI output, to the
// provider and parses the reply into the canonical assessment shape.
func (f *FraudAssessor) Assess(ctx context.Context, doc map[string]any) (storage.FraudAssessment, error) {
	data, err := json.MarshalIndent(withoutAIFields(doc), "", "  ")
	if err != nil {
		return storage.FraudAssessment{}, fmt.Errorf("failed to serialize listing: %w", err)
	}

	resp, err := f.provider.Generate(ctx, llm.Request{
		Prompt:  formatPrompt(fraudPrompt, string(data)),
		Purpose: PurposeFraud,
	})
	if err != nil {
		return storage.FraudAssessment{}, fmt.Errorf("fraud call failed: %w", err)
	}

	return parseFraud(resp.Text)
}

// fraudReply accepts both the canonical {score, riskLevel, ...} reply and
// the older {riskScore, ...} one.
type fraudReply struct {
	Score       *float64 `json:"score"`
	RiskScore   *float64 `json:"riskScore"`
	RiskLevel   string   `json:"riskLevel"`
	Flags       []string `json:"flags"`
	Explanation string   `json:"explanation"`
}

func parseFraud(text string) (storage.FraudAssessment, error) {
	jsonStr, err := llm.ExtractJSONObject(text)
	if err != nil {
		return storage.FraudAssessment{}, fmt.Errorf("%w: fraud: %v", ErrMalformedResponse, err)
	}

	var reply fraudReply
	if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
		return storage.FraudAssessment{}, fmt.Errorf("%w: fraud: %v", ErrMalformedResponse, err)
	}

	var score float64
	switch {
	case reply.Score != nil:
		score = *reply.Score
	case reply.RiskScore != nil:
		score = *reply.RiskScore
	default:
		return storage.FraudAssessment{}, fmt.Errorf("%w: fraud: missing score", ErrMalformedResponse)
	}
	score = min(max(score, 0), 100)

	level := strings.ToLower(strings.TrimSpace(reply.RiskLevel))
	if level == "" {
		level = riskLevelFor(score)
	}
	if !validLevel(level) {
		return storage.FraudAssessment{}, fmt.Errorf("%w: fraud: invalid risk level %q", ErrMalformedResponse, reply.RiskLevel)
	}

	flags := []string{}
	for _, flag := range reply.Flags {
		if flag = strings.TrimSpace(flag); flag != "" {
			flags = append(flags, flag)
		}
	}

	return storage.FraudAssessment{
		Score:       score,
		RiskLevel:   level,
		Flags:       flags,
		Explanation: strings.TrimSpace(reply.Explanation),
	}, nil
}

func riskLevelFor(score float64) string {
	switch {
	case score < mediumRiskScore:
		return "low"
	case score < highRiskScore:
		return "medium"
	default:
		return "high"
	}
}
