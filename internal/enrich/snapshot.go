package enrich

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ListingInput is the set of base listing fields passed to the generators.
// It is built from a document snapshot with every field defaulted, so the
// generators never see a missing value.
type ListingInput struct {
	ID          string
	Title       string
	Address     string
	Price       float64
	Beds        float64
	Baths       float64
	Sqft        float64
	Description string
	ImageURLs   []string
}

// InputFromSnapshot coerces a listing document into a ListingInput. Missing or
// mistyped numbers become 0, strings become "", and image URLs skip
// non-string entries.
func InputFromSnapshot(id string, doc map[string]any) ListingInput {
	return ListingInput{
		ID:          id,
		Title:       stringField(doc, "title"),
		Address:     stringField(doc, "address"),
		Price:       numberField(doc, "price"),
		Beds:        numberField(doc, "beds"),
		Baths:       numberField(doc, "baths"),
		Sqft:        numberField(doc, "sqft"),
		Description: stringField(doc, "description"),
		ImageURLs:   stringsField(doc, "imageUrls"),
	}
}

// BaseFieldsChanged reports whether any field the generators read differs
// between two snapshots. Writes that only touch AI or moderation fields
// leave the base fields unchanged.
func BaseFieldsChanged(before, after map[string]any) bool {
	if before == nil || after == nil {
		return true
	}
	a := InputFromSnapshot("", before)
	b := InputFromSnapshot("", after)
	return a.Title != b.Title ||
		a.Address != b.Address ||
		a.Price != b.Price ||
		a.Beds != b.Beds ||
		a.Baths != b.Baths ||
		a.Sqft != b.Sqft ||
		a.Description != b.Description ||
		!slices.Equal(a.ImageURLs, b.ImageURLs)
}

// aiFieldKeys are the document keys written by the pipeline.
var aiFieldKeys = []string{"aiTags", "aiCaption", "aiPricing", "aiFraud", "aiFullDescription", "aiUpdatedAt"}

// withoutAIFields returns a copy of doc without the pipeline's own output.
func withoutAIFields(doc map[string]any) map[string]any {
	out := maps.Clone(doc)
	if out == nil {
		return map[string]any{}
	}
	for _, k := range aiFieldKeys {
		delete(out, k)
	}
	return out
}

func stringField(doc map[string]any, key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}

func numberField(doc map[string]any, key string) float64 {
	var f float64
	switch v := doc[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func stringsField(doc map[string]any, key string) []string {
	out := []string{}
	switch v := doc[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

// formatNumber prints whole numbers without a decimal part.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
