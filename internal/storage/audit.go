package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is an append-only record of an administrative action.
type AuditRecord struct {
	ID             string    `json:"id"`
	ActorID        string    `json:"actorId"`
	ListingID      string    `json:"listingId"`
	Action         string    `json:"action"`
	Reason         string    `json:"reason,omitempty"`
	Message        string    `json:"message,omitempty"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	CreatedAt      time.Time `json:"createdAt"`
}

// EnrichmentRun is the log record of one enrichment pipeline invocation.
type EnrichmentRun struct {
	ID        string
	ListingID string
	Status    string
	Reason    string
	Duration  time.Duration
	CreatedAt time.Time
}

// AppendAudit stores an audit record. ID and CreatedAt are assigned if empty.
func (s *SQLiteStore) AppendAudit(r *AuditRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO audit_log (id, actor_id, listing_id, action, reason, message, previous_status, new_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ActorID, r.ListingID, r.Action, r.Reason, r.Message, r.PreviousStatus, r.NewStatus, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// ListAudit returns the audit records for a listing, oldest first.
func (s *SQLiteStore) ListAudit(listingID string) ([]AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, actor_id, listing_id, action, reason, message, previous_status, new_status, created_at
		FROM audit_log WHERE listing_id = ? ORDER BY created_at
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(&r.ID, &r.ActorID, &r.ListingID, &r.Action, &r.Reason, &r.Message,
			&r.PreviousStatus, &r.NewStatus, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// RecordRun appends an enrichment run to the run log.
func (s *SQLiteStore) RecordRun(r *EnrichmentRun) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO enrichment_runs (id, listing_id, status, reason, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.ListingID, r.Status, r.Reason, r.Duration.Milliseconds(), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record enrichment run: %w", err)
	}
	return nil
}

// ListRuns returns the enrichment runs of a listing, oldest first.
func (s *SQLiteStore) ListRuns(listingID string) ([]EnrichmentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, listing_id, status, reason, duration_ms, created_at
		FROM enrichment_runs WHERE listing_id = ? ORDER BY created_at
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrichment runs: %w", err)
	}
	defer rows.Close()

	var runs []EnrichmentRun
	for rows.Next() {
		var r EnrichmentRun
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.ListingID, &r.Status, &r.Reason, &durationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrichment run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
