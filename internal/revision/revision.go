// Package revision prepares paragraphs for an external reviser and writes
// the revised text back into the document.
//
// The reviser works on plain text. Each paragraph goes out as an Item
// carrying its run texts, so a rewritten paragraph can be reflowed across
// the same runs it was read from.
package revision

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
)

// Item is one paragraph sent for revision.
type Item struct {
	ParaID    string   `json:"paraID"`
	Text      string   `json:"text"`
	TextArray []string `json:"textArray"`
}

// Correction is one targeted fix inside a paragraph.
type Correction struct {
	OriginText   string `json:"originText"`
	ReplacedText string `json:"replacedText"`
	Reason       string `json:"reason,omitempty"`
}

// Revised is one paragraph as returned by the reviser.
type Revised struct {
	ParaID      string       `json:"paraID"`
	Text        string       `json:"text"`
	Corrections []Correction `json:"corrections"`
}

// Revision pairs a revised paragraph with the text it was made from.
type Revision struct {
	ParaID       string       `json:"paraID"`
	OriginalText string       `json:"originalText"`
	TextArray    []string     `json:"textArray"`
	Text         string       `json:"text"`
	Corrections  []Correction `json:"corrections"`
	Unchanged    bool         `json:"unchanged"`
	NoCorrection bool         `json:"noCorrection"`
}

// Extract lists the paragraphs that carry any text, in document order.
// Every run is kept in TextArray, empty ones included, so the array lines
// up with the live runs.
func Extract(p *patch.Patcher) []Item {
	var items []Item
	for _, snap := range p.Paragraphs() {
		contents := snap.Runs.Contents()
		if !hasText(contents) {
			continue
		}
		items = append(items, Item{
			ParaID:    snap.ID,
			Text:      snap.Runs.Text(),
			TextArray: contents,
		})
	}
	return items
}

func hasText(contents []string) bool {
	for _, c := range contents {
		if c != "" {
			return true
		}
	}
	return false
}

// ParseRevised decodes a reviser's response. A markdown code fence around
// the JSON array is tolerated.
func ParseRevised(data []byte) ([]Revised, error) {
	body := unfence(data)
	if len(body) == 0 {
		return nil, errors.NewParse("JSON", "", "empty revision response")
	}

	var revised []Revised
	if err := json.Unmarshal(body, &revised); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
	}
	for i, r := range revised {
		if strings.TrimSpace(r.ParaID) == "" {
			return nil, errors.Wrapf(errors.NewValidation("paraID", "missing"), "item %d", i)
		}
		if r.Corrections == nil {
			revised[i].Corrections = []Correction{}
		}
	}
	return revised, nil
}

// unfence strips a ```json ... ``` wrapper and any prose around the array.
func unfence(data []byte) []byte {
	body := bytes.TrimSpace(data)
	if bytes.HasPrefix(body, []byte("```")) {
		if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = body[3:]
		}
		body = bytes.TrimSuffix(bytes.TrimSpace(body), []byte("```"))
		body = bytes.TrimSpace(body)
	}
	start := bytes.IndexByte(body, '[')
	end := bytes.LastIndexByte(body, ']')
	if start > 0 && end > start {
		body = body[start : end+1]
	}
	return body
}

// Merge pairs revised paragraphs with their originals by paraID, in the
// order of originals. Revised entries naming an unknown paragraph are
// dropped, as are originals the reviser did not return.
func Merge(originals []Item, revised []Revised) []Revision {
	byID := make(map[string]Revised, len(revised))
	for _, r := range revised {
		byID[r.ParaID] = r
	}

	var out []Revision
	for _, orig := range originals {
		r, ok := byID[orig.ParaID]
		if !ok {
			continue
		}
		corrections := r.Corrections
		if corrections == nil {
			corrections = []Correction{}
		}
		out = append(out, Revision{
			ParaID:       orig.ParaID,
			OriginalText: orig.Text,
			TextArray:    orig.TextArray,
			Text:         r.Text,
			Corrections:  corrections,
			Unchanged:    strings.TrimSpace(r.Text) == strings.TrimSpace(orig.Text),
			NoCorrection: len(corrections) == 0,
		})
	}
	return out
}
