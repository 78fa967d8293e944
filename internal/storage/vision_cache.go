package storage

import (
	"database/sql"
	"fmt"
)

// VisionCacheEntry represents a cached vision provider response.
type VisionCacheEntry struct {
	Text  string
	Model string
}

// GetVisionCache retrieves a cached vision response by request key.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetVisionCache(key string) (*VisionCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry VisionCacheEntry
	err := s.db.QueryRow(
		"SELECT text, model FROM vision_cache WHERE cache_key = ?",
		key,
	).Scan(&entry.Text, &entry.Model)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vision cache: %w", err)
	}

	return &entry, nil
}

// SetVisionCache stores a vision response in the cache.
func (s *SQLiteStore) SetVisionCache(key string, entry *VisionCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO vision_cache (cache_key, text, model)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			text = excluded.text,
			model = excluded.model,
			created_at = CURRENT_TIMESTAMP
	`, key, entry.Text, entry.Model)

	if err != nil {
		return fmt.Errorf("failed to cache vision result: %w", err)
	}
	return nil
}
