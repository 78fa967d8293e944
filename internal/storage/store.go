package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by writes that target a document that no longer exists.
var ErrNotFound = errors.New("document not found")

// Change describes a committed write to a document. A nil Before means the
// document was created; a nil After means it was deleted.
type Change struct {
	Path   string
	Before map[string]any
	After  map[string]any
}

// ChangeFunc receives committed document changes.
type ChangeFunc func(Change)

// SQLiteStore is the persistence store for listings, users, admins, alerts,
// audit records and enrichment run logs. Admin contact fields are encrypted
// at rest with encryptionKey.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex

	hooksMu sync.RWMutex
	hooks   []ChangeFunc
}

// NewSQLiteStore creates a new SQLite-based store.
// The dbPath is the path to the SQLite database file, or ":memory:".
// The encryptionKey is used to encrypt/decrypt admin contact fields.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions; the file exists only after the first statement
	if dbPath != ":memory:" {
		if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dbPath", dbPath).Msg("failed to restrict database file permissions")
		}
	}

	return store, nil
}

var schema = []struct {
	name  string
	query string
}{
	{"listings", `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		beds INTEGER NOT NULL DEFAULT 0,
		baths REAL NOT NULL DEFAULT 0,
		sqft INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		image_urls TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		status_reason TEXT NOT NULL DEFAULT '',
		status_message TEXT NOT NULL DEFAULT '',
		ai_block TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`},
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		claims TEXT NOT NULL DEFAULT '{}',
		token_hash TEXT UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`},
	{"admins", `
	CREATE TABLE IF NOT EXISTS admins (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		encrypted_email TEXT NOT NULL DEFAULT '',
		encrypted_phone TEXT NOT NULL DEFAULT '',
		telegram_chat_id INTEGER NOT NULL DEFAULT 0
	);`},
	{"admin_alerts", `
	CREATE TABLE IF NOT EXISTS admin_alerts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		listing_id TEXT NOT NULL DEFAULT '',
		admin_id TEXT NOT NULL DEFAULT '',
		acknowledged_by TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);`},
	{"audit_log", `
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		previous_status TEXT NOT NULL DEFAULT '',
		new_status TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`},
	{"enrichment_runs", `
	CREATE TABLE IF NOT EXISTS enrichment_runs (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`},
	{"vision_cache", `
	CREATE TABLE IF NOT EXISTS vision_cache (
		cache_key TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`},
	{"audit_log index", `CREATE INDEX IF NOT EXISTS idx_audit_log_listing ON audit_log(listing_id, created_at);`},
	{"enrichment_runs index", `CREATE INDEX IF NOT EXISTS idx_enrichment_runs_listing ON enrichment_runs(listing_id, created_at);`},
}

func (s *SQLiteStore) init() error {
	for _, t := range schema {
		if _, err := s.db.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OnChange registers fn to be called after every committed listing or user
// write. Hooks run on the writer's goroutine after the store lock is released.
func (s *SQLiteStore) OnChange(fn ChangeFunc) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *SQLiteStore) publish(c Change) {
	s.hooksMu.RLock()
	hooks := make([]ChangeFunc, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(c)
	}
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}
