package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Schema for the kv table. Applied by Store.Init.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Open opens (creating if needed) the vidmark SQLite database with the
// production pragmas applied via EXEC, driver-agnostic. Import the
// modernc.org/sqlite driver in the main package.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so the mapping
// read/write helpers work inside and outside transactions.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// readMapping fetches the whole mapping as raw per-identifier JSON.
// Entries stay undecoded so a merge-write preserves collections this
// process never touched, corrupt or not. A missing row or an unparseable
// top-level value yields an empty mapping.
func readMapping(ctx context.Context, q querier) (map[string]json.RawMessage, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ?`, StorageKey).Scan(&value)
	if err == sql.ErrNoRows {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return map[string]json.RawMessage{}, nil
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

// writeMapping stores the whole mapping back under StorageKey.
func writeMapping(ctx context.Context, q querier, raw map[string]json.RawMessage) error {
	value, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("write mapping: marshal: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		StorageKey, string(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	return nil
}
