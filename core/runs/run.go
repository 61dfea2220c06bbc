// Package runs models a paragraph as an ordered sequence of text runs and
// provides the two strategies that place new text into those runs without
// touching their formatting: proportional reflow and span splicing.
//
// All lengths and offsets in this package are measured in runes.
package runs

import (
	"strings"
	"unicode/utf8"
)

// Formatting is the opaque formatting payload of a run. The engine never
// inspects it; it is carried through verbatim.
type Formatting []byte

// TextRun is one inline text-bearing element of a paragraph.
type TextRun struct {
	Content    string     `json:"content"`
	Formatting Formatting `json:"-"`
	Index      int        `json:"index"`
}

// Span is a half-open interval [Start, End) of rune offsets over a
// paragraph's concatenated text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether s and o share at least one position.
func (s Span) Overlaps(o Span) bool {
	return o.Start < s.End && o.End > s.Start
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Sequence is an ordered run sequence owned by one paragraph.
type Sequence []TextRun

// New builds a sequence from plain contents, indexing runs in order.
func New(contents ...string) Sequence {
	seq := make(Sequence, len(contents))
	for i, c := range contents {
		seq[i] = TextRun{Content: c, Index: i}
	}
	return seq
}

// Text returns the concatenation of every run's content.
func (s Sequence) Text() string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(r.Content)
	}
	return b.String()
}

// Len returns the total rune length of the sequence.
func (s Sequence) Len() int {
	n := 0
	for _, r := range s {
		n += utf8.RuneCountInString(r.Content)
	}
	return n
}

// Contents returns each run's content in order.
func (s Sequence) Contents() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = r.Content
	}
	return out
}

// Spans returns the [start, end) offsets of every run within Text().
func (s Sequence) Spans() []Span {
	spans := make([]Span, len(s))
	pos := 0
	for i, r := range s {
		n := utf8.RuneCountInString(r.Content)
		spans[i] = Span{Start: pos, End: pos + n}
		pos += n
	}
	return spans
}

// Join concatenates plain run texts.
func Join(texts []string) string {
	return strings.Join(texts, "")
}

// runeLen is the rune count of s.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
