package revision

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize is the chunk size, in characters, used when none is
// configured.
const DefaultChunkSize = 3000

var blankLine = regexp.MustCompile(`\n\s*\n`)

const paragraphJoiner = "\n\n"

// Chunk splits text into pieces of at most size characters, joiners
// included. It breaks on blank lines first, then after sentence
// terminators, and cuts a sentence that is still too long at exactly size
// characters. Paragraphs packed into one chunk are rejoined with a blank
// line.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" || runeLen(text) <= size {
		return []string{text}
	}

	paragraphs := blankLine.Split(text, -1)
	if len(paragraphs) <= 1 {
		return splitSentences(text, size)
	}

	var chunks []string
	current := ""
	for _, para := range paragraphs {
		if runeLen(para) > size {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, splitSentences(para, size)...)
			continue
		}
		if current != "" && runeLen(current)+runeLen(paragraphJoiner)+runeLen(para) > size {
			chunks = append(chunks, current)
			current = para
			continue
		}
		if current != "" {
			current += paragraphJoiner
		}
		current += para
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func splitSentences(text string, size int) []string {
	var chunks []string
	current := ""
	for _, s := range sentences(text) {
		if runeLen(s) > size {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, hardSplit(s, size)...)
			continue
		}
		sep := separator(current)
		if current != "" && runeLen(current)+runeLen(sep)+runeLen(s) > size {
			chunks = append(chunks, current)
			current = s
			continue
		}
		current += sep + s
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// sentences splits after each terminator and drops the whitespace that
// follows it. A newline ends a sentence only when it is not itself that
// trailing whitespace.
func sentences(text string) []string {
	var out []string
	var b strings.Builder
	skipping := false
	for _, r := range text {
		if skipping {
			if unicode.IsSpace(r) {
				continue
			}
			skipping = false
		}
		b.WriteRune(r)
		if isTerminator(r) {
			out = append(out, b.String())
			b.Reset()
			skipping = true
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// separator joins sentences with a space unless the previous one ends in a
// newline or a full-width terminator.
func separator(current string) string {
	if current == "" {
		return ""
	}
	r, _ := utf8.DecodeLastRuneInString(current)
	switch r {
	case '\n', '。', '！', '？':
		return ""
	}
	return " "
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

func hardSplit(s string, size int) []string {
	rs := []rune(s)
	var out []string
	for i := 0; i < len(rs); i += size {
		end := i + size
		if end > len(rs) {
			end = len(rs)
		}
		out = append(out, string(rs[i:end]))
	}
	return out
}

// ChunkItems groups items into batches whose combined text stays within
// size characters. An item larger than size gets a batch of its own.
func ChunkItems(items []Item, size int) [][]Item {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var batches [][]Item
	var batch []Item
	total := 0
	for _, item := range items {
		n := runeLen(item.Text)
		if len(batch) > 0 && total+n > size {
			batches = append(batches, batch)
			batch, total = nil, 0
		}
		batch = append(batch, item)
		total += n
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
