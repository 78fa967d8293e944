package enrich

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

func formatPrompt(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

const visionPrompt = `
	You are describing a photo from a residential real-estate listing.

	Reply with exactly two lines and nothing else:
	tags: <up to 15 short descriptive tags, comma separated, lower case>
	caption: <one sentence describing what the photo shows>

	Tags should cover rooms, materials, condition, style and notable features
	(e.g. "hardwood floors", "updated kitchen", "fenced yard").`

const pricingPrompt = `
	You are a real-estate pricing analyst for a lease-to-own marketplace.
	Estimate a fair market value for the property below and a suggested
	lease-to-own down payment.

	Listed price: %s
	Address: %s
	Owner description: %s
	Photo tags: %s

	Respond with a JSON object with exactly these fields:
	- estimate: estimated market value in dollars (number)
	- low: low end of the plausible range (number)
	- high: high end of the plausible range (number)
	- downPayment: suggested lease-to-own down payment in dollars (number)
	- confidence: "low", "medium" or "high"
	- reasoning: one or two sentences explaining the estimate

	Respond ONLY with the JSON object, no markdown or other text.`

const fraudPrompt = `
	You review property listings on a lease-to-own marketplace for signs of
	fraud or misrepresentation: prices far below market, missing or
	inconsistent details, pressure tactics, off-platform payment requests,
	reused stock photos, or contact details in the description.

	Listing (JSON):
	%s

	Respond with a JSON object with exactly these fields:
	- score: fraud risk from 0 (clean) to 100 (almost certainly fraudulent) (number)
	- riskLevel: "low", "medium" or "high"
	- flags: list of short strings naming each concern (empty list if none)
	- explanation: one or two sentences summarizing the assessment

	Respond ONLY with the JSON object, no markdown or other text.`

const descriptionPrompt = `
	Write a listing description for a home offered on a lease-to-own
	marketplace. Use 2-4 short paragraphs of warm, factual prose. Do not
	invent features that are not supported by the details below, and do not
	include headings, bullet points or markdown.

	Title: %s
	Address: %s
	Bedrooms: %s
	Bathrooms: %s
	Square feet: %s
	Owner description: %s
	Photo tags: %s`

// joinTags renders a tag list for a prompt.
func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

// orNone renders an empty string as "none" so the model does not read a
// blank line as a formatting error.
func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
