package undostore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
)

func testRecord() patch.UndoRecord {
	return patch.UndoRecord{
		ID:                 uuid.NewString(),
		ParagraphID:        "1A2B3C4D",
		PreviousFragment:   []byte(`<w:p><w:r><w:t>` + strings.Repeat("The cat sat. ", 50) + `</w:t></w:r></w:p>`),
		AppliedFingerprint: "abc123",
		Original:           "cat",
		Replacement:        "dog",
		Position:           42,
		AppliedAt:          time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC),
	}
}

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Load(ctx); ok || err != nil {
		t.Fatalf("empty store Load = %v, %v", ok, err)
	}

	want := testRecord()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.ID != want.ID || got.ParagraphID != want.ParagraphID || got.Position != want.Position ||
		got.Original != want.Original || got.Replacement != want.Replacement ||
		got.AppliedFingerprint != want.AppliedFingerprint {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if !got.AppliedAt.Equal(want.AppliedAt) {
		t.Errorf("AppliedAt = %v, want %v", got.AppliedAt, want.AppliedAt)
	}
	if !bytes.Equal(got.PreviousFragment, want.PreviousFragment) {
		t.Errorf("fragment did not survive compression")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Error("record still present after Clear")
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	first := testRecord()
	second := testRecord()
	second.ID = ""
	second.ParagraphID = "5E6F7A8B"

	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.ParagraphID != "5E6F7A8B" {
		t.Errorf("ParagraphID = %q, want latest record", got.ParagraphID)
	}
	if _, err := uuid.Parse(got.ID); err != nil || got.ID == first.ID {
		t.Errorf("ID = %q, want a fresh UUID", got.ID)
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM undo_slot`).Scan(&rows); err != nil || rows != 1 {
		t.Errorf("rows = %d, %v; want 1", rows, err)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "undo.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	want := testRecord()
	if err := s.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, ok, err := s.Load(ctx)
	if err != nil || !ok || got.ID != want.ID {
		t.Errorf("Load after reopen = %+v, %v, %v", got, ok, err)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Save(ctx, testRecord()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`UPDATE undo_slot SET previous_fragment = ?`, []byte("not xz")); err != nil {
		t.Fatal(err)
	}

	_, ok, err := s.Load(ctx)
	var pe *errors.ParseError
	if ok || !errors.As(err, &pe) || pe.Format != "xz" {
		t.Errorf("Load = %v, %v; want xz ParseError", ok, err)
	}
}

func TestStoreAsPatcherSlot(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	p := patch.New(nil, nil, s)
	if _, err := p.Undo(context.Background()); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Undo on empty store = %v, want ErrNotFound", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("<w:t>repeated</w:t>", 100))
	blob, err := compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) >= len(data) {
		t.Errorf("compressed %d bytes to %d", len(data), len(blob))
	}
	back, err := decompress(blob)
	if err != nil || !bytes.Equal(back, data) {
		t.Errorf("decompress = %v", err)
	}
}

func TestPeek(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "undo.db")

	if _, ok, err := Peek(ctx, path); ok || err != nil {
		t.Fatalf("Peek on missing store = %v, %v", ok, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Peek created the database")
	}

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	want := testRecord()
	if err := s.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	s.Close()

	got, ok, err := Peek(ctx, path)
	if err != nil || !ok || got.ID != want.ID || got.Replacement != "dog" {
		t.Errorf("Peek = %+v, %v, %v", got, ok, err)
	}
}
