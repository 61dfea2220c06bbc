package patch

import (
	"context"
	"sync"
	"time"
)

// UndoRecord captures what is needed to revert the most recent patch.
type UndoRecord struct {
	ID                 string    `json:"id"`
	ParagraphID        string    `json:"paraId"`
	PreviousFragment   []byte    `json:"-"`
	AppliedFingerprint string    `json:"appliedFingerprint"`
	Original           string    `json:"original"`
	Replacement        string    `json:"replacement"`
	Position           int       `json:"position"`
	AppliedAt          time.Time `json:"appliedAt"`
}

// UndoSlot holds at most one UndoRecord. Save overwrites any previous record.
type UndoSlot interface {
	Save(ctx context.Context, rec UndoRecord) error
	Load(ctx context.Context) (UndoRecord, bool, error)
	Clear(ctx context.Context) error
}

// MemorySlot is an in-process UndoSlot.
type MemorySlot struct {
	mu  sync.Mutex
	rec *UndoRecord
}

// NewMemorySlot creates an empty in-process slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Save replaces the held record.
func (s *MemorySlot) Save(_ context.Context, rec UndoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.PreviousFragment = append([]byte(nil), rec.PreviousFragment...)
	s.rec = &rec
	return nil
}

// Load returns the held record, if any.
func (s *MemorySlot) Load(_ context.Context) (UndoRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return UndoRecord{}, false, nil
	}
	return *s.rec, true, nil
}

// Clear empties the slot.
func (s *MemorySlot) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}
