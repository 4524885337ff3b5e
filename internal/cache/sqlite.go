package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pilot/internal/types"
)

// SQLite is a durable backend on a local database file. UPSERT gives
// last-write-wins per key without table locks held across calls.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite cache path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// Concurrent workers share this handle; WAL avoids writer starvation.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS step_cache (
			key         TEXT PRIMARY KEY,
			instruction TEXT NOT NULL,
			updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create step_cache table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get returns the instruction for key, or ErrMiss.
func (s *SQLite) Get(ctx context.Context, key string) (types.Instruction, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT instruction FROM step_cache WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Instruction{}, ErrMiss
	}
	if err != nil {
		return types.Instruction{}, fmt.Errorf("sqlite get: %w", err)
	}
	var in types.Instruction
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return types.Instruction{}, fmt.Errorf("decode cached instruction: %w", err)
	}
	return in, nil
}

// Put stores the instruction under key, last-write-wins.
func (s *SQLite) Put(ctx context.Context, key string, in types.Instruction) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode instruction: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO step_cache (key, instruction, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			instruction = excluded.instruction,
			updated_at  = excluded.updated_at`, key, string(raw))
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

// Invalidate removes key; missing keys are a no-op.
func (s *SQLite) Invalidate(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM step_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite invalidate: %w", err)
	}
	return nil
}

// Count reports the number of entries.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM step_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count: %w", err)
	}
	return n, nil
}

// Clear drops every entry.
func (s *SQLite) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM step_cache")
	if err != nil {
		return 0, fmt.Errorf("sqlite clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database handle.
func (s *SQLite) Close() error { return s.db.Close() }
