// Package store owns the per-video bookmark list and its persistence.
//
// All bookmarks live in one SQLite key-value row: a JSON object mapping
// content identifier to an ordered bookmark array. Persisting is a
// read-modify-write of that mapping inside a transaction, so entries for
// other identifiers (possibly written by another vidmark process) are
// merged, never clobbered. Contention on the same identifier resolves
// last-writer-wins.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// StorageKey is the single kv row under which the whole mapping lives.
const StorageKey = "bookmarks"

// Bookmark is one saved position in a video. Order within a collection is
// insertion order; the index in the list is the only addressing scheme.
type Bookmark struct {
	Time float64 `json:"time"`
	Note string  `json:"note"`
}

// Store holds the in-memory bookmark list for the active video and syncs
// it with the kv table. It is not safe for concurrent use; the session
// event loop is the only caller.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	active []Bookmark
}

// New creates a Store on an opened database. Call Init to apply the schema.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Init creates the kv table if it doesn't exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Bookmarks returns a copy of the active list.
func (s *Store) Bookmarks() []Bookmark {
	out := make([]Bookmark, len(s.active))
	copy(out, s.active)
	return out
}

// Len returns the number of bookmarks in the active list.
func (s *Store) Len() int { return len(s.active) }

// Load replaces the active list with the persisted collection for id.
// A missing or corrupted entry yields an empty list, never an error.
func (s *Store) Load(ctx context.Context, id string) error {
	raw, err := readMapping(ctx, s.db)
	if err != nil {
		return fmt.Errorf("store: load %s: %w", id, err)
	}

	s.active = decodeCollection(raw[id], s.logger, id)
	return nil
}

// Discard drops the active list without touching storage. Used when
// navigating away from a content page.
func (s *Store) Discard() {
	s.active = nil
}

// Persist writes the active list under id, merging with whatever the
// mapping currently holds for other identifiers.
func (s *Store) Persist(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: persist %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	raw, err := readMapping(ctx, tx)
	if err != nil {
		return fmt.Errorf("store: persist %s: %w", id, err)
	}

	list := s.active
	if list == nil {
		list = []Bookmark{}
	}
	entry, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("store: persist %s: marshal: %w", id, err)
	}
	raw[id] = entry

	if err := writeMapping(ctx, tx, raw); err != nil {
		return fmt.Errorf("store: persist %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: persist %s: commit: %w", id, err)
	}
	return nil
}

// Add appends a bookmark and persists. The in-memory append survives a
// persistence failure; the caller decides whether to surface the error.
func (s *Store) Add(ctx context.Context, id string, t float64, note string) error {
	s.active = append(s.active, Bookmark{Time: t, Note: note})
	return s.Persist(ctx, id)
}

// RemoveAt deletes the bookmark at index and persists. Out-of-range
// indices are a silent no-op: the index may have been resolved against a
// list that shrank since the UI was drawn.
func (s *Store) RemoveAt(ctx context.Context, id string, index int) error {
	if index < 0 || index >= len(s.active) {
		return nil
	}
	s.active = append(s.active[:index], s.active[index+1:]...)
	return s.Persist(ctx, id)
}

// UpdateNote replaces the note at index and persists. Out-of-range is a
// silent no-op.
func (s *Store) UpdateNote(ctx context.Context, id string, index int, note string) error {
	if index < 0 || index >= len(s.active) {
		return nil
	}
	s.active[index].Note = note
	return s.Persist(ctx, id)
}

// Clear empties the active list and persists the empty collection. The
// identifier's entry stays in the mapping (as an empty array) so a later
// load sees a valid, empty collection.
func (s *Store) Clear(ctx context.Context, id string) error {
	s.active = s.active[:0]
	return s.Persist(ctx, id)
}

// Mapping returns the entire persisted mapping, decoded. Corrupted
// per-identifier entries decode as empty collections. Used by the
// whole-store export path.
func (s *Store) Mapping(ctx context.Context) (map[string][]Bookmark, error) {
	raw, err := readMapping(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("store: mapping: %w", err)
	}

	out := make(map[string][]Bookmark, len(raw))
	for id, entry := range raw {
		out[id] = decodeCollection(entry, s.logger, id)
	}
	return out, nil
}

// decodeCollection parses one identifier's entry, tolerating corruption
// (non-array value) by treating it as empty.
func decodeCollection(entry json.RawMessage, logger *slog.Logger, id string) []Bookmark {
	if len(entry) == 0 {
		return []Bookmark{}
	}
	var list []Bookmark
	if err := json.Unmarshal(entry, &list); err != nil {
		logger.Warn("store: corrupted collection, treating as empty",
			"id", id, "error", err)
		return []Bookmark{}
	}
	if list == nil {
		list = []Bookmark{}
	}
	return list
}
