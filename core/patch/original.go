package patch

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/docrevise/core/runs"
)

// Original is the caller's record of a paragraph's text before revision:
// either the full string or the text of each run.
type Original struct {
	text   string
	runs   []string
	isRuns bool
}

// FullText describes the original paragraph as one string.
func FullText(s string) Original {
	return Original{text: s}
}

// RunTexts describes the original paragraph run by run.
func RunTexts(texts []string) Original {
	cp := make([]string, len(texts))
	copy(cp, texts)
	return Original{text: runs.Join(cp), runs: cp, isRuns: true}
}

// Text returns the full original string.
func (o Original) Text() string {
	return o.text
}

// Runs returns the per-run texts and whether the original carries them.
func (o Original) Runs() ([]string, bool) {
	if !o.isRuns {
		return nil, false
	}
	cp := make([]string, len(o.runs))
	copy(cp, o.runs)
	return cp, true
}

// String implements fmt.Stringer.
func (o Original) String() string {
	if o.isRuns {
		return fmt.Sprintf("RunTexts(%q)", o.runs)
	}
	return fmt.Sprintf("FullText(%q)", o.text)
}

// MarshalJSON encodes a full text as a JSON string and run texts as an array.
func (o Original) MarshalJSON() ([]byte, error) {
	if o.isRuns {
		return json.Marshal(o.runs)
	}
	return json.Marshal(o.text)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (o *Original) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = FullText(s)
		return nil
	}
	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return fmt.Errorf("original must be a string or an array of strings: %w", err)
	}
	*o = RunTexts(texts)
	return nil
}
