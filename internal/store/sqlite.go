// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Owns schema creation, session reset at startup/shutdown, and bulk clear

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
// All access goes through the embedded *sql.DB, which serializes
// concurrent writers via its connection pool and SQLite's own locking.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a new SQLite store at the given path. The schema is
// created if it doesn't exist and parent directories are created if
// needed. Opening always resets sessions: every token issued by a
// previous process is invalidated (restart forces a global logout).
func Open(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Cascade deletes on users require foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.ResetSessions(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("resetting sessions: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			is_online BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_users_online ON users(is_online);

		CREATE TABLE IF NOT EXISTS auth_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT UNIQUE NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			message_text TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ResetSessions drops every live session: the auth_tokens relation is
// recreated from scratch and all presence flags are zeroed. This is the
// named startup/shutdown behavior - a process restart logs everyone out.
// Single-writer, single-process assumption; not safe to run while another
// instance holds sessions against the same file.
func (s *SQLiteStore) ResetSessions(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS auth_tokens`,
		`CREATE TABLE auth_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT UNIQUE NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`UPDATE users SET is_online = 0`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting sessions: %w", err)
		}
	}

	s.logger.Info("all sessions reset")
	return nil
}

// Clear deletes all rows from all relations and resets identity counters.
// Intended for test isolation only, never called from request handling.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	stmts := []string{
		`DELETE FROM auth_tokens`,
		`DELETE FROM messages`,
		`DELETE FROM users`,
		`DELETE FROM sqlite_sequence WHERE name IN ('users', 'auth_tokens', 'messages')`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageError("clearing store", err)
		}
	}

	s.logger.Debug("store cleared")
	return nil
}

// Close resets sessions (explicit teardown) and closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.ResetSessions(context.Background()); err != nil {
		s.logger.Error("session reset on close failed", "error", err)
	}
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on nil and rolling
// back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
