// Package undostore persists the single-slot undo record in SQLite so an
// undo survives across command invocations.
//
// The table holds at most one row. The previous paragraph fragment is
// stored xz-compressed; record IDs are UUIDs.
package undostore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS undo_slot (
	slot                INTEGER PRIMARY KEY CHECK (slot = 1),
	id                  TEXT    NOT NULL,
	paragraph_id        TEXT    NOT NULL,
	previous_fragment   BLOB    NOT NULL,
	applied_fingerprint TEXT    NOT NULL,
	original            TEXT    NOT NULL,
	replacement         TEXT    NOT NULL,
	position            INTEGER NOT NULL,
	applied_at          TEXT    NOT NULL
)`

// Store is a patch.UndoSlot backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ patch.UndoSlot = (*Store)(nil)

// Open opens or creates the store at path. An empty path opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	if path == "" {
		db, err = sqlite.OpenMemory()
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create undo directory: %w", err)
		}
		db, err = sqlite.Open(path)
	}
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database, creating the schema if needed.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("failed to create undo schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Peek reads the record in the store at path without creating or
// modifying anything. A missing database holds no record.
func Peek(ctx context.Context, path string) (patch.UndoRecord, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return patch.UndoRecord{}, false, nil
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return patch.UndoRecord{}, false, err
	}
	defer db.Close()
	return (&Store{db: db}).Load(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save overwrites the slot with rec. A record without an ID is given one.
func (s *Store) Save(ctx context.Context, rec patch.UndoRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	blob, err := compress(rec.PreviousFragment)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO undo_slot
			(slot, id, paragraph_id, previous_fragment, applied_fingerprint, original, replacement, position, applied_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ParagraphID, blob, rec.AppliedFingerprint,
		rec.Original, rec.Replacement, rec.Position,
		rec.AppliedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save undo record: %w", err)
	}
	return nil
}

// Load returns the stored record, if any.
func (s *Store) Load(ctx context.Context) (patch.UndoRecord, bool, error) {
	var (
		rec       patch.UndoRecord
		blob      []byte
		appliedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, paragraph_id, previous_fragment, applied_fingerprint, original, replacement, position, applied_at
		FROM undo_slot WHERE slot = 1`,
	).Scan(&rec.ID, &rec.ParagraphID, &blob, &rec.AppliedFingerprint,
		&rec.Original, &rec.Replacement, &rec.Position, &appliedAt)
	if err == sql.ErrNoRows {
		return patch.UndoRecord{}, false, nil
	}
	if err != nil {
		return patch.UndoRecord{}, false, fmt.Errorf("failed to load undo record: %w", err)
	}

	if _, err := uuid.Parse(rec.ID); err != nil {
		return patch.UndoRecord{}, false, &errors.ParseError{Format: "undo record", Message: "invalid id", Err: err}
	}
	if rec.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt); err != nil {
		return patch.UndoRecord{}, false, &errors.ParseError{Format: "undo record", Message: "invalid timestamp", Err: err}
	}
	if rec.PreviousFragment, err = decompress(blob); err != nil {
		return patch.UndoRecord{}, false, err
	}
	return rec, true, nil
}

// Clear empties the slot.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM undo_slot`); err != nil {
		return fmt.Errorf("failed to clear undo record: %w", err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, &errors.ParseError{Format: "xz", Message: "corrupt fragment", Err: err}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "xz", Message: "corrupt fragment", Err: err}
	}
	return data, nil
}
