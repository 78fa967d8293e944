package alerts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/raine/lease-to-own/internal/trigger"
)

const maxSMSLength = 320

func formatMessage(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

const newListingMessage = `
	A new listing is waiting for review.

	Title: %s
	Address: %s
	Price: %s
	Listing ID: %s`

const fraudRiskMessage = `
	Listing %q was assessed as high fraud risk (score %s).

	Flags: %s
	%s

	Listing ID: %s`

const moderationMessage = `
	Listing %s was moderated by %s: %s -> %s.
	%s`

// ListingAlerts raises alerts for listing writes: one when a listing is
// created and one when its fraud assessment becomes high risk.
// It is registered for "listings/{id}".
type ListingAlerts struct {
	service *Service
}

func NewListingAlerts(service *Service) *ListingAlerts {
	return &ListingAlerts{service: service}
}

// HandleEvent implements trigger.Handler.
func (p *ListingAlerts) HandleEvent(ctx context.Context, ev trigger.Event, params trigger.Params) error {
	id := params["id"]
	if ev.After == nil {
		return nil
	}

	if ev.Created() {
		title, _ := ev.After["title"].(string)
		address, _ := ev.After["address"].(string)
		err := p.service.Raise(ctx, &storage.AdminAlert{
			Type:      storage.AlertNewListing,
			Title:     "New listing: " + orUntitled(title),
			Message:   formatMessage(newListingMessage, orUntitled(title), address, formatAmount(ev.After["price"]), id),
			ListingID: id,
		})
		if err != nil {
			return err
		}
	}

	if riskLevel(ev.After) == "high" && riskLevel(ev.Before) != "high" {
		title, _ := ev.After["title"].(string)
		fraud, _ := ev.After["aiFraud"].(map[string]any)
		explanation, _ := fraud["explanation"].(string)
		err := p.service.Raise(ctx, &storage.AdminAlert{
			Type:  storage.AlertFraudRisk,
			Title: "High fraud risk: " + orUntitled(title),
			Message: formatMessage(fraudRiskMessage,
				orUntitled(title),
				formatAmount(fraud["score"]),
				joinFlags(fraud["flags"]),
				explanation,
				id,
			),
			ListingID: id,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// ModerationAlert builds the alert raised after an admin changes a listing's
// status.
func ModerationAlert(listingID, actorID, action, previousStatus, newStatus, note string) *storage.AdminAlert {
	return &storage.AdminAlert{
		Type:      storage.AlertModeration,
		Title:     fmt.Sprintf("Listing %s: %s", action, listingID),
		Message:   strings.TrimSpace(formatMessage(moderationMessage, listingID, actorID, previousStatus, newStatus, note)),
		ListingID: listingID,
		AdminID:   actorID,
	}
}

func riskLevel(doc map[string]any) string {
	fraud, ok := doc["aiFraud"].(map[string]any)
	if !ok {
		return ""
	}
	level, _ := fraud["riskLevel"].(string)
	return level
}

func joinFlags(v any) string {
	items, _ := v.([]any)
	var flags []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			flags = append(flags, s)
		}
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ", ")
}

func formatAmount(v any) string {
	f, ok := v.(float64)
	if !ok {
		return "unknown"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orUntitled(title string) string {
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

// smsBody shortens an alert to fit a couple of SMS segments.
func smsBody(alert *storage.AdminAlert) string {
	body := []rune(alert.Title + "\n" + alert.Message)
	if len(body) <= maxSMSLength {
		return string(body)
	}
	return string(body[:maxSMSLength-3]) + "..."
}
