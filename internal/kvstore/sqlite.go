// Package kvstore provides the SQLite implementation of the Store interface.
package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite. SQLite serializes writers, which
// gives every operation the per-key atomicity the callers rely on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS kv_hash (
		map TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (map, field)
	);

	CREATE TABLE IF NOT EXISTS kv_list (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kv_list_key ON kv_list(key, id);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the value for key. Expired keys are treated as absent and lazily
// deleted.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if expiresAt.Valid && time.Now().UnixNano() >= expiresAt.Int64 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return "", false, nil
	}
	return value, true, nil
}

// Set stores value under key. A ttl of zero means no expiry.
func (s *SQLiteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}

// HashGet returns the value of field in map m.
func (s *SQLiteStore) HashGet(ctx context.Context, m, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_hash WHERE map = ? AND field = ?`, m, field,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// HashSet stores value under field in map m, replacing any existing value.
func (s *SQLiteStore) HashSet(ctx context.Context, m, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_hash (map, field, value) VALUES (?, ?, ?)
		 ON CONFLICT(map, field) DO UPDATE SET value = excluded.value`,
		m, field, value,
	)
	return err
}

// HashGetAll returns every field/value pair of map m.
func (s *SQLiteStore) HashGetAll(ctx context.Context, m string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM kv_hash WHERE map = ?`, m)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, rows.Err()
}

// HashDelete removes field from map m. Deleting a missing field is not an error.
func (s *SQLiteStore) HashDelete(ctx context.Context, m, field string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_hash WHERE map = ? AND field = ?`, m, field)
	return err
}

// ListPush prepends value to the list at key.
func (s *SQLiteStore) ListPush(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_list (key, value) VALUES (?, ?)`, key, value)
	return err
}

// ListRange returns list entries newest first, from index start through stop
// inclusive. stop = -1 means the end of the list.
func (s *SQLiteStore) ListRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	if start < 0 {
		start = 0
	}
	limit := -1
	if stop >= 0 {
		if stop < start {
			return nil, nil
		}
		limit = stop - start + 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv_list WHERE key = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		key, limit, start,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
