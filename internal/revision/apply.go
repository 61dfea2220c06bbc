package revision

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/internal/logging"
)

// Mode selects how revisions are written back.
type Mode string

const (
	// ModeRewrite replaces each paragraph with the revised text, reflowed
	// across its original runs.
	ModeRewrite Mode = "rewrite"
	// ModeCorrect applies each correction as a span replacement and leaves
	// the rest of the paragraph alone.
	ModeCorrect Mode = "correct"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRewrite, ModeCorrect:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown revision mode %q (want %q or %q)", s, ModeRewrite, ModeCorrect)
}

// Outcome is the result of one attempted patch.
type Outcome struct {
	ParaID string `json:"paraID"`
	// Correction is set in ModeCorrect.
	Correction *Correction  `json:"correction,omitempty"`
	Result     patch.Result `json:"result"`
	Err        error        `json:"-"`
}

// Apply writes revisions back through p. Unchanged revisions are skipped in
// ModeRewrite, and revisions without corrections in ModeCorrect. A failing
// patch is recorded in its Outcome and the batch continues. Apply stops
// early only when ctx is done.
func Apply(ctx context.Context, p *patch.Patcher, revisions []Revision, mode Mode) ([]Outcome, error) {
	var outcomes []Outcome
	for _, rev := range revisions {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		switch mode {
		case ModeCorrect:
			for i := range rev.Corrections {
				c := rev.Corrections[i]
				if c.OriginText == "" || c.OriginText == c.ReplacedText {
					logging.DebugContext(ctx, "correction ignored", "paragraph_id", rev.ParaID, "origin_text", c.OriginText)
					continue
				}
				res, err := p.ApplySpanReplacement(ctx, rev.ParaID, c.OriginText, c.ReplacedText)
				outcomes = append(outcomes, Outcome{ParaID: rev.ParaID, Correction: &c, Result: res, Err: err})
			}
		default:
			if rev.Unchanged {
				continue
			}
			res, err := p.ApplyFullReplacement(ctx, rev.ParaID, patch.RunTexts(rev.TextArray), rev.Text)
			outcomes = append(outcomes, Outcome{ParaID: rev.ParaID, Result: res, Err: err})
		}
	}

	s := Summarize(outcomes)
	logging.InfoContext(ctx, "revisions_applied",
		"mode", string(mode),
		"applied", s.Applied,
		"skipped", s.Skipped,
		"failed", s.Failed,
	)
	return outcomes, nil
}

// Summary counts outcomes by kind.
type Summary struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Summarize counts outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			s.Failed++
		case o.Result.Replaced:
			s.Applied++
		default:
			s.Skipped++
		}
	}
	return s
}
