package runs

import (
	"github.com/FocuswithJustin/docrevise/core/errors"
)

// Reflow distributes replacement across the live runs in proportion to the
// lengths of originalRuns, the caller's record of what each run held.
//
// Every run but the last receives floor(len(replacement) * share) runes,
// at least one if its original text was non-empty; the last run takes
// whatever remains. The returned contents always have the same count as
// liveRuns and concatenate to exactly replacement.
//
// A count disagreement returns a *MismatchError; an empty original returns
// a *MismatchError matching ErrZeroLength.
func Reflow(originalRuns []string, liveRuns Sequence, replacement string) ([]string, error) {
	if len(originalRuns) != len(liveRuns) {
		return nil, errors.NewMismatch("run count", len(originalRuns), len(liveRuns))
	}
	if len(liveRuns) == 0 {
		return nil, errors.NewMismatch("run count", 1, 0)
	}

	lengths := make([]int, len(originalRuns))
	total := 0
	for i, r := range originalRuns {
		lengths[i] = runeLen(r)
		total += lengths[i]
	}
	if total == 0 {
		return nil, &errors.MismatchError{What: "original length", Expected: 1, Actual: 0, Err: errors.ErrZeroLength}
	}

	remaining := []rune(replacement)
	replLen := len(remaining)
	out := make([]string, len(liveRuns))
	last := len(liveRuns) - 1

	for i := 0; i < last; i++ {
		allocated := replLen * lengths[i] / total
		if allocated < 1 && lengths[i] > 0 {
			allocated = 1
		}
		if allocated > len(remaining) {
			allocated = len(remaining)
		}
		out[i] = string(remaining[:allocated])
		remaining = remaining[allocated:]
	}
	out[last] = string(remaining)

	return out, nil
}
