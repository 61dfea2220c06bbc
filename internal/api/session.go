package api

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/internal/revision"
	"github.com/FocuswithJustin/docrevise/internal/validation"
)

// Document is an open package the session edits.
type Document interface {
	patch.Host
	patch.Codec
	Modified() bool
	Save(path string) error
}

// Session serializes every access to one open document.
type Session struct {
	mu      sync.Mutex
	doc     Document
	path    string
	patcher *patch.Patcher
}

// NewSession wraps doc, loaded from path. A nil slot keeps undo in memory.
func NewSession(doc Document, path string, slot patch.UndoSlot) *Session {
	return &Session{
		doc:     doc,
		path:    path,
		patcher: patch.New(doc, doc, slot),
	}
}

// Path returns the file the document was opened from.
func (s *Session) Path() string {
	return s.path
}

// ParagraphInfo describes one paragraph.
type ParagraphInfo struct {
	ParaID    string   `json:"paraID"`
	Position  int      `json:"position"`
	Text      string   `json:"text"`
	TextArray []string `json:"textArray"`
}

// Paragraphs lists readable paragraphs in document order.
func (s *Session) Paragraphs() []ParagraphInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.patcher.Paragraphs()
	out := make([]ParagraphInfo, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, ParagraphInfo{
			ParaID:    snap.ID,
			Position:  snap.Position,
			Text:      snap.Runs.Text(),
			TextArray: snap.Runs.Contents(),
		})
	}
	return out
}

// Items lists the paragraphs worth sending for revision.
func (s *Session) Items() []revision.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return revision.Extract(s.patcher)
}

// Locate finds a paragraph by identity.
func (s *Session) Locate(id string) patch.LocateResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patcher.Locate(id)
}

// ReplaceFull replaces a paragraph's text. A nil original uses the
// paragraph's live text.
func (s *Session) ReplaceFull(ctx context.Context, id string, original *patch.Original, replacement string) (patch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if original == nil {
		snap, err := s.patcher.Snapshot(id)
		if err != nil {
			return patch.Result{Position: -1}, err
		}
		o := patch.FullText(snap.Runs.Text())
		original = &o
	}
	return s.patcher.ApplyFullReplacement(ctx, id, *original, replacement)
}

// ReplaceSpan replaces the first occurrence of original in a paragraph.
func (s *Session) ReplaceSpan(ctx context.Context, id, original, replacement string) (patch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patcher.ApplySpanReplacement(ctx, id, original, replacement)
}

// Undo reverts the most recent patch.
func (s *Session) Undo(ctx context.Context) (patch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patcher.Undo(ctx)
}

// ApplyRevisions merges revised paragraphs with the live document and
// writes them back.
func (s *Session) ApplyRevisions(ctx context.Context, revised []revision.Revised, mode revision.Mode) ([]revision.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revisions := revision.Merge(revision.Extract(s.patcher), revised)
	return revision.Apply(ctx, s.patcher, revisions, mode)
}

// Save writes the document. An empty target saves in place; otherwise
// target is resolved inside the document's directory.
func (s *Session) Save(target string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path
	if target != "" {
		rel, err := validation.SanitizePath(filepath.Dir(s.path), target)
		if err != nil {
			return "", &errors.ValidationError{Field: "path", Message: err.Error(), Err: errors.ErrInvalidInput}
		}
		if err := validation.ValidateDocumentPath(rel); err != nil {
			return "", &errors.ValidationError{Field: "path", Message: err.Error(), Err: errors.ErrInvalidInput}
		}
		path = filepath.Join(filepath.Dir(s.path), rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", errors.Wrap(err, "creating output directory")
		}
	}
	if err := s.doc.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Modified reports whether the document has unsaved changes.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Modified()
}
