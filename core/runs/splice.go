package runs

import (
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/docrevise/core/errors"
)

// Find locates the first occurrence of substring in the concatenated text
// of s, ignoring run boundaries. An empty substring is never found.
func Find(s Sequence, substring string) (Span, bool) {
	if substring == "" {
		return Span{}, false
	}
	text := s.Text()
	idx := strings.Index(text, substring)
	if idx < 0 {
		return Span{}, false
	}
	start := utf8.RuneCountInString(text[:idx])
	return Span{Start: start, End: start + runeLen(substring)}, true
}

// Splice replaces the first occurrence of original in the concatenated
// text of liveRuns with replacement, rewriting only the runs the match
// overlaps.
//
// When one run holds the whole match, only the matched slice of that run
// changes. When the match crosses runs, the first overlapping run keeps its
// prefix followed by the full replacement, interior runs become empty, and
// the last overlapping run keeps only its suffix. The result has one entry
// per live run; emptied runs are present as "".
//
// If original does not occur, a *NotFoundError is returned and liveRuns is
// left untouched.
func Splice(liveRuns Sequence, original, replacement string) ([]string, error) {
	match, ok := Find(liveRuns, original)
	if !ok {
		return nil, errors.NewNotFound("substring", original)
	}

	spans := liveRuns.Spans()
	out := liveRuns.Contents()

	first, last := -1, -1
	for i, sp := range spans {
		if sp.Overlaps(match) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, errors.NewNotFound("overlapping run", original)
	}

	if spans[first].Contains(match) {
		out[first] = replaceWithin(liveRuns[first].Content, spans[first], match, replacement)
		return out, nil
	}

	head := []rune(liveRuns[first].Content)
	out[first] = string(head[:match.Start-spans[first].Start]) + replacement
	for i := first + 1; i < last; i++ {
		out[i] = ""
	}
	tail := []rune(liveRuns[last].Content)
	out[last] = string(tail[match.End-spans[last].Start:])

	return out, nil
}

// replaceWithin swaps the part of content covered by match for replacement.
// run is content's span in the concatenation and must contain match.
func replaceWithin(content string, run, match Span, replacement string) string {
	rs := []rune(content)
	lo := match.Start - run.Start
	hi := lo + match.Len()
	return string(rs[:lo]) + replacement + string(rs[hi:])
}
