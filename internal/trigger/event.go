package trigger

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raine/lease-to-own/internal/storage"
)

// Event is a committed write to a document. Before is nil for creations and
// After is nil for deletions.
type Event struct {
	ID     string         `json:"id"`
	Path   string         `json:"path"`
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
	Time   time.Time      `json:"time"`
}

// Created reports whether the event created the document.
func (e Event) Created() bool {
	return e.Before == nil && e.After != nil
}

// Deleted reports whether the event deleted the document.
func (e Event) Deleted() bool {
	return e.After == nil
}

// FromChange converts a store change into an event.
func FromChange(c storage.Change) Event {
	return Event{
		ID:     uuid.New().String(),
		Path:   c.Path,
		Before: c.Before,
		After:  c.After,
		Time:   time.Now().UTC(),
	}
}

// DecodeEvent reads a JSON-encoded event, as delivered by the HTTP and AMQP
// sources. The path must name a document (collection/id pairs).
func DecodeEvent(r io.Reader) (Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if err := validatePath(ev.Path); err != nil {
		return Event{}, err
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	return ev, nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("event path is empty")
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments)%2 != 0 {
		return fmt.Errorf("event path %q does not name a document", path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("event path %q has an empty segment", path)
		}
	}
	return nil
}
