package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RoleAdmin is the user role that grants the admin claim.
const RoleAdmin = "admin"

// ClaimAdmin is the authorization claim checked by administrative endpoints.
const ClaimAdmin = "admin"

// User is an account that can own listings or administer the marketplace.
type User struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Role      string          `json:"role"`
	Claims    map[string]bool `json:"claims"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// HasClaim reports whether the user carries the named authorization claim.
func (u *User) HasClaim(name string) bool {
	return u != nil && u.Claims[name]
}

// Snapshot returns the user as a generic document map.
func (u *User) Snapshot() map[string]any {
	data, err := json.Marshal(u)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// UserPath returns the document path of a user.
func UserPath(id string) string {
	return "users/" + id
}

// Admin holds notification contact details for an administrator.
// Email and Phone are stored encrypted.
type Admin struct {
	UserID         string
	Name           string
	Email          string
	Phone          string
	TelegramChatID int64
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteStore) getUser(q rowQuerier, id string) (*User, error) {
	var u User
	var claims string
	err := q.QueryRow(
		"SELECT id, email, role, claims, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.Role, &claims, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if err := json.Unmarshal([]byte(claims), &u.Claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims for user %s: %w", id, err)
	}
	if u.Claims == nil {
		u.Claims = map[string]bool{}
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
// Returns nil, nil if the user doesn't exist.
func (s *SQLiteStore) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(s.db, id)
}

// GetUserByToken resolves a bearer token to its user.
// Returns nil, nil if no user has that token.
func (s *SQLiteStore) GetUserByToken(token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRow("SELECT id FROM users WHERE token_hash = ?", hashToken(token)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by token: %w", err)
	}
	return s.getUser(s.db, id)
}

// SaveUser stores or updates a user's email and role. Claims are preserved
// on update; they are owned by the role-claim sync.
func (s *SQLiteStore) SaveUser(u *User) error {
	now := time.Now().UTC()

	s.mu.Lock()
	before, err := s.getUser(s.db, u.ID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO users (id, email, role, claims, created_at, updated_at)
		VALUES (?, ?, ?, '{}', ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			role = excluded.role,
			updated_at = excluded.updated_at
	`, u.ID, u.Email, u.Role, now, now)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save user: %w", err)
	}

	after, err := s.getUser(s.db, u.ID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	*u = *after
	change := Change{Path: UserPath(u.ID), After: after.Snapshot()}
	if before != nil {
		change.Before = before.Snapshot()
	}
	s.publish(change)
	return nil
}

// SetUserToken sets the bearer token used to authenticate the user.
// Only a hash of the token is stored.
func (s *SQLiteStore) SetUserToken(id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE users SET token_hash = ? WHERE id = ?", hashToken(token), id)
	if err != nil {
		return fmt.Errorf("failed to set user token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserClaims replaces the authorization claims of a user.
func (s *SQLiteStore) SetUserClaims(id string, claims map[string]bool) error {
	if claims == nil {
		claims = map[string]bool{}
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal claims: %w", err)
	}

	s.mu.Lock()
	before, err := s.getUser(s.db, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if before == nil {
		s.mu.Unlock()
		return ErrNotFound
	}

	_, err = s.db.Exec("UPDATE users SET claims = ?, updated_at = ? WHERE id = ?", string(data), time.Now().UTC(), id)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to set user claims: %w", err)
	}

	after, err := s.getUser(s.db, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(Change{Path: UserPath(id), Before: before.Snapshot(), After: after.Snapshot()})
	return nil
}

// SaveAdmin stores or updates an admin's contact details.
func (s *SQLiteStore) SaveAdmin(a *Admin) error {
	email, err := encryptField(a.Email, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt admin email: %w", err)
	}
	phone, err := encryptField(a.Phone, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt admin phone: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO admins (user_id, name, encrypted_email, encrypted_phone, telegram_chat_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			encrypted_email = excluded.encrypted_email,
			encrypted_phone = excluded.encrypted_phone,
			telegram_chat_id = excluded.telegram_chat_id
	`, a.UserID, a.Name, email, phone, a.TelegramChatID)
	if err != nil {
		return fmt.Errorf("failed to save admin: %w", err)
	}
	return nil
}

// GetAdmins returns all admins with decrypted contact details.
func (s *SQLiteStore) GetAdmins() ([]Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT user_id, name, encrypted_email, encrypted_phone, telegram_chat_id FROM admins ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		var a Admin
		var email, phone string
		if err := rows.Scan(&a.UserID, &a.Name, &email, &phone, &a.TelegramChatID); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		if a.Email, err = decryptField(email, s.encryptionKey); err != nil {
			return nil, fmt.Errorf("failed to decrypt email for admin %s: %w", a.UserID, err)
		}
		if a.Phone, err = decryptField(phone, s.encryptionKey); err != nil {
			return nil, fmt.Errorf("failed to decrypt phone for admin %s: %w", a.UserID, err)
		}
		admins = append(admins, a)
	}

	return admins, rows.Err()
}
