// Package patch locates paragraphs in a live document by identity and
// writes revised text into their runs.
//
// A patch is computed entirely off-document: the paragraph's fragment is
// read, decoded into runs, rewritten by one of the strategies in core/runs
// and serialized. The only mutation is a single SetFragment call, so a
// fault at any earlier step leaves the paragraph unchanged.
package patch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/docrevise/core/cas"
	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/runs"
	"github.com/FocuswithJustin/docrevise/internal/logging"
)

// Strategy names reported in Result.Strategy.
const (
	StrategyReflow = "reflow"
	StrategySplice = "splice"
	StrategyUndo   = "undo"
)

// Skip reasons reported in Result.Skipped.
const (
	SkipSubstringNotFound = "substring not found"
	SkipZeroLength        = "zero-length original"
)

// Host is the live document.
type Host interface {
	// ParagraphCount returns the number of paragraphs in document order.
	ParagraphCount() int
	// Paragraph returns the i-th paragraph. An error marks that paragraph
	// as unreadable; it does not invalidate the others.
	Paragraph(i int) (HostParagraph, error)
}

// HostParagraph is one paragraph of the live document.
type HostParagraph interface {
	ID() (string, error)
	Start() int
	Fragment() ([]byte, error)
	SetFragment(data []byte) error
}

// Codec turns a paragraph fragment into runs.
type Codec interface {
	Decode(data []byte) (Fragment, error)
}

// Fragment is a decoded paragraph fragment.
type Fragment interface {
	Runs() runs.Sequence
	SetContents(contents []string) error
	Bytes() ([]byte, error)
}

// Result reports the outcome of a patch.
type Result struct {
	Replaced bool   `json:"replaced"`
	Position int    `json:"position"`
	Strategy string `json:"strategy,omitempty"`
	Skipped  string `json:"skipped,omitempty"`
}

// LocateResult reports where a paragraph is.
type LocateResult struct {
	Found    bool `json:"found"`
	Position int  `json:"position"`
}

// Patcher applies patches to one host document. Calls are expected to be
// sequential; callers sharing a Patcher across goroutines must serialize.
type Patcher struct {
	host  Host
	codec Codec
	undo  UndoSlot
	now   func() time.Time
}

// New creates a Patcher. A nil slot gets a fresh MemorySlot.
func New(host Host, codec Codec, slot UndoSlot) *Patcher {
	if slot == nil {
		slot = NewMemorySlot()
	}
	return &Patcher{
		host:  host,
		codec: codec,
		undo:  slot,
		now:   time.Now,
	}
}

// Host returns the document the patcher writes to.
func (p *Patcher) Host() Host {
	return p.host
}

// Codec returns the fragment codec.
func (p *Patcher) Codec() Codec {
	return p.codec
}

// UndoSlot returns the slot holding the last applied patch.
func (p *Patcher) UndoSlot() UndoSlot {
	return p.undo
}

// Locate finds a paragraph by identity without modifying anything.
func (p *Patcher) Locate(paragraphID string) LocateResult {
	para, ok := p.find(paragraphID)
	if !ok {
		return LocateResult{Found: false, Position: -1}
	}
	return LocateResult{Found: true, Position: para.Start()}
}

// Snapshot is a read-only view of one paragraph.
type Snapshot struct {
	ID       string
	Position int
	Runs     runs.Sequence
}

// Snapshot reads a paragraph's current runs by identity.
func (p *Patcher) Snapshot(paragraphID string) (Snapshot, error) {
	para, ok := p.find(paragraphID)
	if !ok {
		return Snapshot{}, errors.NewNotFound("paragraph", paragraphID)
	}
	return p.snapshot(paragraphID, para)
}

// Paragraphs reads every paragraph in document order. Paragraphs that
// cannot be read or decoded are left out.
func (p *Patcher) Paragraphs() []Snapshot {
	var out []Snapshot
	n := p.host.ParagraphCount()
	for i := 0; i < n; i++ {
		para, err := p.host.Paragraph(i)
		if err != nil {
			continue
		}
		id, err := para.ID()
		if err != nil {
			continue
		}
		snap, err := p.snapshot(id, para)
		if err != nil {
			logging.Debug("paragraph undecodable, skipping", "paragraph_id", id, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out
}

func (p *Patcher) snapshot(id string, para HostParagraph) (Snapshot, error) {
	data, err := para.Fragment()
	if err != nil {
		return Snapshot{}, serialization("read", err)
	}
	frag, err := p.codec.Decode(data)
	if err != nil {
		return Snapshot{}, serialization("parse", err)
	}
	return Snapshot{ID: id, Position: para.Start(), Runs: frag.Runs()}, nil
}

// ApplyFullReplacement replaces a whole paragraph's text.
//
// With RunTexts matching the live run count, the replacement is reflowed
// across the runs in proportion to the original run lengths. With a
// FullText equal to the live text, the live runs provide the proportions.
// Otherwise the original text is spliced out of the live runs.
func (p *Patcher) ApplyFullReplacement(ctx context.Context, paragraphID string, original Original, replacement string) (Result, error) {
	return p.apply(ctx, paragraphID, original.Text(), replacement, func(live runs.Sequence) ([]string, string, error) {
		return planFull(ctx, paragraphID, live, original, replacement)
	})
}

// ApplySpanReplacement replaces the first occurrence of original within a
// paragraph, touching only the runs it overlaps.
func (p *Patcher) ApplySpanReplacement(ctx context.Context, paragraphID, original, replacement string) (Result, error) {
	return p.apply(ctx, paragraphID, original, replacement, func(live runs.Sequence) ([]string, string, error) {
		out, err := runs.Splice(live, original, replacement)
		return out, StrategySplice, err
	})
}

// Undo restores the paragraph touched by the most recent patch, provided it
// has not changed since. The slot is cleared on success.
func (p *Patcher) Undo(ctx context.Context) (Result, error) {
	rec, ok, err := p.undo.Load(ctx)
	if err != nil {
		return p.fail(ctx, "", errors.Wrap(err, "load undo record"))
	}
	if !ok {
		return p.fail(ctx, "", errors.NewNotFound("undo record", ""))
	}

	para, found := p.find(rec.ParagraphID)
	if !found {
		return p.fail(ctx, rec.ParagraphID, errors.NewNotFound("paragraph", rec.ParagraphID))
	}
	current, err := para.Fragment()
	if err != nil {
		return p.fail(ctx, rec.ParagraphID, serialization("read", err))
	}
	if !cas.Matches(current, rec.AppliedFingerprint) {
		return p.fail(ctx, rec.ParagraphID, errors.NewConflict("paragraph", rec.ParagraphID, "modified since the patch was applied"))
	}
	if err := para.SetFragment(rec.PreviousFragment); err != nil {
		return p.fail(ctx, rec.ParagraphID, serialization("write", err))
	}
	if err := p.undo.Clear(ctx); err != nil {
		logging.WarnContext(ctx, "undo slot not cleared", "error", err)
	}

	position := para.Start()
	logging.InfoContext(ctx, "patch_undone",
		"paragraph_id", rec.ParagraphID,
		"undo_id", rec.ID,
		"position", position,
	)
	return Result{Replaced: true, Position: position, Strategy: StrategyUndo}, nil
}

type planFunc func(live runs.Sequence) ([]string, string, error)

func (p *Patcher) apply(ctx context.Context, paragraphID, original, replacement string, plan planFunc) (Result, error) {
	para, ok := p.find(paragraphID)
	if !ok {
		return p.fail(ctx, paragraphID, errors.NewNotFound("paragraph", paragraphID))
	}
	position := para.Start()

	previous, err := para.Fragment()
	if err != nil {
		return p.fail(ctx, paragraphID, serialization("read", err))
	}
	frag, err := p.codec.Decode(previous)
	if err != nil {
		return p.fail(ctx, paragraphID, serialization("parse", err))
	}

	contents, strategy, err := plan(frag.Runs())
	switch {
	case errors.Is(err, errors.ErrZeroLength):
		return p.skip(ctx, paragraphID, position, SkipZeroLength), nil
	case errors.Is(err, errors.ErrNotFound):
		return p.skip(ctx, paragraphID, position, SkipSubstringNotFound), nil
	case err != nil:
		return p.fail(ctx, paragraphID, err)
	}

	if err := frag.SetContents(contents); err != nil {
		return p.fail(ctx, paragraphID, serialization("update", err))
	}
	data, err := frag.Bytes()
	if err != nil {
		return p.fail(ctx, paragraphID, serialization("serialize", err))
	}
	if err := para.SetFragment(data); err != nil {
		return p.fail(ctx, paragraphID, serialization("write", err))
	}

	applied, err := para.Fragment()
	if err != nil {
		applied = data
	}
	rec := UndoRecord{
		ID:                 uuid.NewString(),
		ParagraphID:        paragraphID,
		PreviousFragment:   previous,
		AppliedFingerprint: cas.Fingerprint(applied),
		Original:           original,
		Replacement:        replacement,
		Position:           position,
		AppliedAt:          p.now().UTC(),
	}
	if err := p.undo.Save(ctx, rec); err != nil {
		logging.WarnContext(ctx, "undo record not saved", "paragraph_id", paragraphID, "error", err)
	}

	logging.PatchApplied(ctx, paragraphID, strategy, position, "undo_id", rec.ID)
	return Result{Replaced: true, Position: position, Strategy: strategy}, nil
}

// find scans paragraphs in document order. Paragraphs that cannot be read
// or whose identity cannot be resolved are skipped.
func (p *Patcher) find(paragraphID string) (HostParagraph, bool) {
	n := p.host.ParagraphCount()
	for i := 0; i < n; i++ {
		para, err := p.host.Paragraph(i)
		if err != nil {
			logging.Debug("paragraph unreadable, skipping", "index", i, "error", err)
			continue
		}
		id, err := para.ID()
		if err != nil {
			logging.Debug("paragraph identity unavailable, skipping", "index", i, "error", err)
			continue
		}
		if id == paragraphID {
			return para, true
		}
	}
	return nil, false
}

func (p *Patcher) skip(ctx context.Context, paragraphID string, position int, reason string) Result {
	logging.PatchSkipped(ctx, paragraphID, reason, "position", position)
	return Result{Replaced: false, Position: position, Skipped: reason}
}

func (p *Patcher) fail(ctx context.Context, paragraphID string, err error) (Result, error) {
	logging.PatchFailed(ctx, paragraphID, err)
	return Result{Replaced: false, Position: -1}, err
}

// planFull picks the strategy for a whole-paragraph replacement.
func planFull(ctx context.Context, paragraphID string, live runs.Sequence, original Original, replacement string) ([]string, string, error) {
	if texts, ok := original.Runs(); ok {
		if original.Text() == "" {
			return nil, "", errors.ErrZeroLength
		}
		out, err := runs.Reflow(texts, live, replacement)
		if err == nil {
			return out, StrategyReflow, nil
		}
		if errors.Is(err, errors.ErrZeroLength) {
			return nil, "", err
		}
		logging.WarnContext(ctx, "run layout changed, falling back to splice",
			"paragraph_id", paragraphID,
			"error", err,
		)
	} else if live.Text() == original.Text() {
		out, err := runs.Reflow(live.Contents(), live, replacement)
		if err == nil {
			return out, StrategyReflow, nil
		}
		if errors.Is(err, errors.ErrZeroLength) {
			return nil, "", err
		}
	}

	out, err := runs.Splice(live, original.Text(), replacement)
	return out, StrategySplice, err
}

// serialization classifies err as a serialization fault unless it already is.
func serialization(op string, err error) error {
	if errors.Is(err, errors.ErrSerialization) {
		return err
	}
	return errors.NewSerialization(op, err)
}
