package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/chatroom/pkg/crypto"
	"github.com/NicolasHaas/chatroom/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// openDB opens a SQLite database with the pragmas every store needs.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB, schema string) error {
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("datastore: read schema version: %w", err)
	}
	if version >= 1 {
		return nil
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("datastore: migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE schema_migrations SET version = 1"); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- Accounts ----

// SQLAccountStore is the SQLite credential store.
type SQLAccountStore struct {
	db *sql.DB
}

// OpenAccounts opens (or creates) the accounts database and runs migrations.
func OpenAccounts(path string) (*SQLAccountStore, error) {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 32),
		password TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLAccountStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLAccountStore) Close() error {
	return s.db.Close()
}

// CreateAccount validates the username, hashes the password, and inserts the
// account. A duplicate username maps to ErrUsernameTaken.
func (s *SQLAccountStore) CreateAccount(username, password string) error {
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	digest, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		"INSERT INTO users (username, password) VALUES (?, ?)", username, digest)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	return nil
}

// CheckLogin verifies a username/password pair against the stored digest.
func (s *SQLAccountStore) CheckLogin(username, password string) (bool, error) {
	var digest string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT password FROM users WHERE username = ?", username).Scan(&digest)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: check login: %w", err)
	}
	return crypto.VerifyPassword(password, digest), nil
}

// GetAccountByUsername retrieves an account by username, nil if absent.
func (s *SQLAccountStore) GetAccountByUsername(username string) (*model.Account, error) {
	a := &model.Account{}
	var createdAt string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT id, username, created_at FROM users WHERE username = ?", username).
		Scan(&a.ID, &a.Username, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: get account: %w", err)
	}
	parsed, err := parseDBTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("datastore: get account: %w", err)
	}
	a.CreatedAt = parsed
	return a, nil
}

// ListAccounts returns all accounts ordered by ID.
func (s *SQLAccountStore) ListAccounts() ([]model.Account, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, username, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("datastore: list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Username, &createdAt); err != nil {
			return nil, fmt.Errorf("datastore: scan account: %w", err)
		}
		parsed, err := parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan account: %w", err)
		}
		a.CreatedAt = parsed
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ---- Messages ----

// SQLMessageStore is the SQLite chat log, kept in its own database file so
// the chat log and the credential store stay independent.
type SQLMessageStore struct {
	db *sql.DB
}

// OpenMessages opens (or creates) the message log database and runs migrations.
func OpenMessages(path string) (*SQLMessageStore, error) {
	const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		username  TEXT NOT NULL,
		message   TEXT NOT NULL,
		timestamp TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLMessageStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLMessageStore) Close() error {
	return s.db.Close()
}

// SaveMessage appends one chat line; the timestamp column defaults to the
// insertion time.
func (s *SQLMessageStore) SaveMessage(username, body string) error {
	m := &model.ChatMessage{Username: username, Body: body}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("datastore: save message: %w", err)
	}
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO messages (username, message) VALUES (?, ?)", username, body)
	if err != nil {
		return fmt.Errorf("datastore: save message: %w", err)
	}
	return nil
}

// ListMessages returns chat lines in insertion order.
func (s *SQLMessageStore) ListMessages(filters model.MessageFilters) ([]model.ChatMessage, error) {
	query := `
		SELECT id, username, message, timestamp
		FROM messages
		WHERE (? IS NULL OR username = ?)
		ORDER BY id
		LIMIT COALESCE(?, 100)
		OFFSET COALESCE(?, 0)
	`

	rows, err := s.db.QueryContext(
		context.Background(),
		query,
		filters.LimitToUsername, filters.LimitToUsername,
		filters.PageSize,
		filters.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("datastore: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Username, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("datastore: scan message: %w", err)
		}
		parsed, err := parseDBTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("datastore: scan message: %w", err)
		}
		m.CreatedAt = parsed
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
