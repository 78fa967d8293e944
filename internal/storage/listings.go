package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Listing statuses
const (
	StatusPending          = "pending"
	StatusActive           = "active"
	StatusRejected         = "rejected"
	StatusSuspended        = "suspended"
	StatusChangesRequested = "changes_requested"
)

// Listing is one property offered for lease-to-own. The embedded AIBlock is
// nil until the first successful enrichment run and is only ever written as
// a whole.
type Listing struct {
	ID            string   `json:"id"`
	OwnerID       string   `json:"ownerId"`
	Title         string   `json:"title"`
	Address       string   `json:"address"`
	Price         float64  `json:"price"`
	Beds          int      `json:"beds"`
	Baths         float64  `json:"baths"`
	Sqft          int      `json:"sqft"`
	Description   string   `json:"description"`
	ImageURLs     []string `json:"imageUrls"`
	Status        string   `json:"status"`
	StatusReason  string   `json:"statusReason,omitempty"`
	StatusMessage string   `json:"statusMessage,omitempty"`
	*AIBlock
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AIBlock holds the fields derived by the enrichment pipeline.
type AIBlock struct {
	Tags            []string        `json:"aiTags"`
	Caption         string          `json:"aiCaption"`
	Pricing         PricingEstimate `json:"aiPricing"`
	Fraud           FraudAssessment `json:"aiFraud"`
	FullDescription string          `json:"aiFullDescription"`
	UpdatedAt       time.Time       `json:"aiUpdatedAt"`
}

// PricingEstimate is a model-produced lease-to-own price estimate.
type PricingEstimate struct {
	Estimate    float64 `json:"estimate"`
	Low         float64 `json:"low"`
	High        float64 `json:"high"`
	DownPayment float64 `json:"downPayment"`
	Confidence  string  `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// FraudAssessment is a model-produced listing risk assessment. Score is 0-100.
type FraudAssessment struct {
	Score       float64  `json:"score"`
	RiskLevel   string   `json:"riskLevel"`
	Flags       []string `json:"flags"`
	Explanation string   `json:"explanation"`
}

// Snapshot returns the listing as a generic document map, the shape carried
// by change events.
func (l *Listing) Snapshot() map[string]any {
	data, err := json.Marshal(l)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// ListingPath returns the document path of a listing.
func ListingPath(id string) string {
	return "listings/" + id
}

const listingColumns = `id, owner_id, title, address, price, beds, baths, sqft, description,
	image_urls, status, status_reason, status_message, ai_block, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var l Listing
	var imageURLs string
	var aiBlock sql.NullString

	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Address, &l.Price, &l.Beds, &l.Baths, &l.Sqft,
		&l.Description, &imageURLs, &l.Status, &l.StatusReason, &l.StatusMessage, &aiBlock,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(imageURLs), &l.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image urls for listing %s: %w", l.ID, err)
	}
	if aiBlock.Valid && aiBlock.String != "" {
		var block AIBlock
		if err := json.Unmarshal([]byte(aiBlock.String), &block); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ai block for listing %s: %w", l.ID, err)
		}
		l.AIBlock = &block
	}

	return &l, nil
}

// getListing reads a listing without taking the store lock.
func (s *SQLiteStore) getListing(q rowQuerier, id string) (*Listing, error) {
	l, err := scanListing(q.QueryRow("SELECT "+listingColumns+" FROM listings WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing: %w", err)
	}
	return l, nil
}

// GetListing retrieves a listing by ID.
// Returns nil, nil if the listing doesn't exist.
func (s *SQLiteStore) GetListing(id string) (*Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getListing(s.db, id)
}

// ListListings returns all listings, newest first.
func (s *SQLiteStore) ListListings() ([]Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT " + listingColumns + " FROM listings ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}

	return listings, rows.Err()
}

// CreateListing inserts a new listing. An ID is assigned if empty.
func (s *SQLiteStore) CreateListing(l *Listing) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = StatusPending
	}
	if l.ImageURLs == nil {
		l.ImageURLs = []string{}
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	imageURLs, err := json.Marshal(l.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal image urls: %w", err)
	}
	var aiBlock sql.NullString
	if l.AIBlock != nil {
		data, err := json.Marshal(l.AIBlock)
		if err != nil {
			return fmt.Errorf("failed to marshal ai block: %w", err)
		}
		aiBlock = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	_, err = s.db.Exec(`
		INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.OwnerID, l.Title, l.Address, l.Price, l.Beds, l.Baths, l.Sqft, l.Description,
		string(imageURLs), l.Status, l.StatusReason, l.StatusMessage, aiBlock, l.CreatedAt, l.UpdatedAt)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	s.publish(Change{Path: ListingPath(l.ID), After: l.Snapshot()})
	return nil
}

// UpdateListing overwrites the owner-editable fields of a listing.
// Status and AI fields are left untouched.
func (s *SQLiteStore) UpdateListing(l *Listing) error {
	if l.ImageURLs == nil {
		l.ImageURLs = []string{}
	}
	imageURLs, err := json.Marshal(l.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal image urls: %w", err)
	}

	return s.writeListing(l.ID, func() (sql.Result, error) {
		return s.db.Exec(`
			UPDATE listings SET owner_id = ?, title = ?, address = ?, price = ?, beds = ?, baths = ?,
				sqft = ?, description = ?, image_urls = ?, updated_at = ?
			WHERE id = ?
		`, l.OwnerID, l.Title, l.Address, l.Price, l.Beds, l.Baths, l.Sqft, l.Description,
			string(imageURLs), time.Now().UTC(), l.ID)
	})
}

// UpdateListingStatus sets the moderation status fields of a listing and
// returns the previous status.
func (s *SQLiteStore) UpdateListingStatus(id, status, reason, message string) (string, error) {
	var previous string
	err := s.writeListing(id, func() (sql.Result, error) {
		if err := s.db.QueryRow("SELECT status FROM listings WHERE id = ?", id).Scan(&previous); err != nil {
			return nil, err
		}
		return s.db.Exec(`
			UPDATE listings SET status = ?, status_reason = ?, status_message = ?, updated_at = ?
			WHERE id = ?
		`, status, reason, message, time.Now().UTC(), id)
	})
	return previous, err
}

// UpdateListingAI replaces the AI-derived block of a listing in a single
// statement. Returns ErrNotFound if the listing no longer exists; a missing
// listing is never created.
func (s *SQLiteStore) UpdateListingAI(id string, block AIBlock) error {
	if block.Tags == nil {
		block.Tags = []string{}
	}
	if block.Fraud.Flags == nil {
		block.Fraud.Flags = []string{}
	}
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal ai block: %w", err)
	}

	return s.writeListing(id, func() (sql.Result, error) {
		return s.db.Exec(
			"UPDATE listings SET ai_block = ?, updated_at = ? WHERE id = ?",
			string(data), time.Now().UTC(), id,
		)
	})
}

// DeleteListing removes a listing. Deleting a missing listing is a no-op.
func (s *SQLiteStore) DeleteListing(id string) error {
	s.mu.Lock()
	before, err := s.getListing(s.db, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if before == nil {
		s.mu.Unlock()
		return nil
	}
	_, err = s.db.Exec("DELETE FROM listings WHERE id = ?", id)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	s.publish(Change{Path: ListingPath(id), Before: before.Snapshot()})
	return nil
}

// writeListing runs a single-row update under the store lock and publishes
// the before/after snapshots once it has committed.
func (s *SQLiteStore) writeListing(id string, exec func() (sql.Result, error)) error {
	s.mu.Lock()
	before, err := s.getListing(s.db, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if before == nil {
		s.mu.Unlock()
		return ErrNotFound
	}

	res, err := exec()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	after, err := s.getListing(s.db, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	change := Change{Path: ListingPath(id), Before: before.Snapshot()}
	if after != nil {
		change.After = after.Snapshot()
	}
	s.publish(change)
	return nil
}
