// Package wordml reads and rewrites WordprocessingML paragraph fragments.
//
// A fragment is a single <w:p> element carrying its own namespace
// declarations. Each <w:t> element is one text run; the run's formatting
// is the <w:rPr> of its enclosing <w:r>, kept as raw XML and never
// interpreted.
//
// Security Notes:
//   - Parsing goes through xmlquery, which uses Go's encoding/xml and does
//     not fetch external entities.
package wordml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/runs"
)

// Namespaces used by paragraph fragments.
const (
	NamespaceW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	namespaceXML = "http://www.w3.org/XML/1998/namespace"
)

var (
	paragraphExpr = xpath.MustCompile("//w:p")
	textExpr      = xpath.MustCompile(".//w:t")
)

// Fragment is a parsed paragraph fragment.
type Fragment struct {
	para  *xmlquery.Node
	texts []*xmlquery.Node
}

// Parse parses a <w:p> fragment. The outermost w:p is the paragraph.
func Parse(data []byte) (*Fragment, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewSerialization("parse", err)
	}
	para := xmlquery.QuerySelector(doc, paragraphExpr)
	if para == nil {
		return nil, errors.NewSerialization("parse", fmt.Errorf("no w:p element in fragment"))
	}
	NormalizeAttrs(para)
	return FromNode(para), nil
}

// NormalizeAttrs rewrites attributes bound to the reserved xml namespace
// (xml:space, xml:lang) back to their "xml" prefix so they serialize under
// their usual name.
func NormalizeAttrs(n *xmlquery.Node) {
	for i := range n.Attr {
		if n.Attr[i].Name.Space == namespaceXML {
			n.Attr[i].Name.Space = "xml"
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			NormalizeAttrs(c)
		}
	}
}

// FromNode wraps an already-parsed <w:p> node. Text runs belonging to
// nested paragraphs (for example inside text boxes) are excluded.
func FromNode(para *xmlquery.Node) *Fragment {
	f := &Fragment{para: para}
	for _, t := range xmlquery.QuerySelectorAll(para, textExpr) {
		if owningParagraph(t) == para {
			f.texts = append(f.texts, t)
		}
	}
	return f
}

// Node returns the underlying <w:p> element.
func (f *Fragment) Node() *xmlquery.Node {
	return f.para
}

// ParagraphID returns the w14:paraId attribute, or "" when absent.
func (f *Fragment) ParagraphID() string {
	return ParagraphID(f.para)
}

// Runs returns the paragraph's text runs in document order.
func (f *Fragment) Runs() runs.Sequence {
	seq := make(runs.Sequence, len(f.texts))
	for i, t := range f.texts {
		seq[i] = runs.TextRun{
			Content:    t.InnerText(),
			Formatting: runFormatting(t),
			Index:      i,
		}
	}
	return seq
}

// Text returns the concatenated run text.
func (f *Fragment) Text() string {
	var b strings.Builder
	for _, t := range f.texts {
		b.WriteString(t.InnerText())
	}
	return b.String()
}

// SetContents rewrites each run's text. Formatting and every other node in
// the fragment are left as they are.
func (f *Fragment) SetContents(contents []string) error {
	if len(contents) != len(f.texts) {
		return errors.NewMismatch("run count", len(f.texts), len(contents))
	}
	for i, t := range f.texts {
		setText(t, contents[i])
	}
	return nil
}

// Bytes serializes the fragment.
func (f *Fragment) Bytes() ([]byte, error) {
	if f.para == nil {
		return nil, errors.NewSerialization("serialize", fmt.Errorf("empty fragment"))
	}
	return []byte(f.para.OutputXML(true)), nil
}

// ParagraphID reads w14:paraId from a <w:p> node.
func ParagraphID(para *xmlquery.Node) string {
	for _, a := range para.Attr {
		if a.Name.Local == "paraId" {
			return a.Value
		}
	}
	return ""
}

// IsElement reports whether n is the WordprocessingML element w:<local>.
func IsElement(n *xmlquery.Node, local string) bool {
	if n == nil || n.Type != xmlquery.ElementNode || n.Data != local {
		return false
	}
	return n.NamespaceURI == NamespaceW || n.Prefix == "w"
}

func owningParagraph(n *xmlquery.Node) *xmlquery.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if IsElement(p, "p") {
			return p
		}
	}
	return nil
}

// runFormatting returns the raw <w:rPr> of the run that owns t.
func runFormatting(t *xmlquery.Node) runs.Formatting {
	r := t.Parent
	if !IsElement(r, "r") {
		return nil
	}
	for c := r.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, "rPr") {
			return runs.Formatting(c.OutputXML(true))
		}
	}
	return nil
}

// setText replaces all children of t with a single text node.
func setText(t *xmlquery.Node, s string) {
	for c := t.FirstChild; c != nil; {
		next := c.NextSibling
		c.Parent, c.PrevSibling, c.NextSibling = nil, nil, nil
		c = next
	}
	t.FirstChild, t.LastChild = nil, nil

	if s != "" {
		text := &xmlquery.Node{Type: xmlquery.TextNode, Data: s, Parent: t}
		t.FirstChild, t.LastChild = text, text
	}
	if needsPreserve(s) {
		setPreserveSpace(t)
	}
}

func needsPreserve(s string) bool {
	return s != strings.TrimSpace(s) || strings.Contains(s, "  ")
}

func setPreserveSpace(t *xmlquery.Node) {
	for i, a := range t.Attr {
		if a.Name.Local == "space" && (a.Name.Space == "xml" || a.Name.Space == namespaceXML) {
			t.Attr[i].Value = "preserve"
			return
		}
	}
	t.Attr = append(t.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: "xml", Local: "space"},
		Value:        "preserve",
		NamespaceURI: namespaceXML,
	})
}
