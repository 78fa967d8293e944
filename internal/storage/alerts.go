package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Admin alert types
const (
	AlertNewListing = "new_listing"
	AlertFraudRisk  = "fraud_risk"
	AlertModeration = "moderation"
)

// AdminAlert is a notification for administrators. AcknowledgedBy holds the
// IDs of admins who have seen it and starts empty.
type AdminAlert struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	ListingID      string    `json:"listingId,omitempty"`
	AdminID        string    `json:"adminId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	AcknowledgedBy []string  `json:"acknowledgedBy"`
}

const alertColumns = "id, type, title, message, listing_id, admin_id, acknowledged_by, created_at"

func scanAlert(row rowScanner) (*AdminAlert, error) {
	var a AdminAlert
	var acked string
	if err := row.Scan(&a.ID, &a.Type, &a.Title, &a.Message, &a.ListingID, &a.AdminID, &acked, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(acked), &a.AcknowledgedBy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal acknowledgements for alert %s: %w", a.ID, err)
	}
	if a.AcknowledgedBy == nil {
		a.AcknowledgedBy = []string{}
	}
	return &a, nil
}

// CreateAlert stores a new alert. ID and CreatedAt are assigned if empty and
// AcknowledgedBy is reset to empty.
func (s *SQLiteStore) CreateAlert(a *AdminAlert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.AcknowledgedBy = []string{}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO admin_alerts ("+alertColumns+") VALUES (?, ?, ?, ?, ?, ?, '[]', ?)",
		a.ID, a.Type, a.Title, a.Message, a.ListingID, a.AdminID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
// Returns nil, nil if the alert doesn't exist.
func (s *SQLiteStore) GetAlert(id string) (*AdminAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAlert(id)
}

func (s *SQLiteStore) getAlert(id string) (*AdminAlert, error) {
	a, err := scanAlert(s.db.QueryRow("SELECT "+alertColumns+" FROM admin_alerts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns the most recent alerts, newest first.
func (s *SQLiteStore) ListAlerts(limit int) ([]AdminAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT "+alertColumns+" FROM admin_alerts ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AdminAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}

	return alerts, rows.Err()
}

// AcknowledgeAlert records that adminID has seen the alert. Acknowledging
// twice is a no-op. Returns ErrNotFound if the alert doesn't exist.
func (s *SQLiteStore) AcknowledgeAlert(id, adminID string) (*AdminAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.getAlert(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if slices.Contains(a.AcknowledgedBy, adminID) {
		return a, nil
	}

	a.AcknowledgedBy = append(a.AcknowledgedBy, adminID)
	data, err := json.Marshal(a.AcknowledgedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal acknowledgements: %w", err)
	}

	if _, err := s.db.Exec("UPDATE admin_alerts SET acknowledged_by = ? WHERE id = ?", string(data), id); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return a, nil
}
