package store

import (
	"strings"
	"time"
)

// AdminUser is an operator allowed to issue control commands from the web
// surface.
type AdminUser struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Usernames are matched case-insensitively; the journal stores them folded.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (db *DB) CreateAdminUser(username, passwordHash string) error {
	_, err := db.Exec(db.Q(`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`),
		normalizeUsername(username), passwordHash)
	return err
}

func (db *DB) GetAdminUser(username string) (*AdminUser, error) {
	var u AdminUser
	var lastLogin, createdAt any
	err := db.QueryRow(db.Q(`SELECT id, username, password_hash, last_login_at, created_at FROM admin_users WHERE username=?`),
		normalizeUsername(username)).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &lastLogin, &createdAt)
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = parseTimePtr(lastLogin)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// RecordAdminLogin stamps a successful login.
func (db *DB) RecordAdminLogin(username string) error {
	_, err := db.Exec(db.Q(`UPDATE admin_users SET last_login_at=datetime('now','localtime') WHERE username=?`),
		normalizeUsername(username))
	return err
}

func (db *DB) AdminUserExists() (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM admin_users`).Scan(&count)
	return count > 0, err
}
