// Package docx hosts a Word (.docx) package as a live document for the
// patch engine.
//
// The main part, word/document.xml, is parsed once with xmlquery. Every
// <w:p> under <w:body> is a paragraph, enumerated in document order and
// identified by its w14:paraId. Paragraphs are read and written as
// self-contained fragments carrying the document's namespace declarations.
// All other package parts are copied through unchanged on save.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/core/wordml"
)

// DocumentPart is the package part holding the main document body.
const DocumentPart = "word/document.xml"

// MaxPartSize bounds any single decompressed part.
const MaxPartSize = 256 << 20

var bodyParagraphExpr = xpath.MustCompile("//w:body//w:p")

type part struct {
	header zip.FileHeader
	data   []byte
}

// Document is an open .docx package.
type Document struct {
	parts  []part
	root   *xmlquery.Node
	decls  []xmlquery.Attr
	paras  []*xmlquery.Node
	starts []int
	dirty  bool
}

// Open reads a .docx file from disk.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := Read(data)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filepath.Base(path))
	}
	return doc, nil
}

// Read parses a .docx package held in memory.
func Read(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &errors.ParseError{Format: "docx", Message: "not a zip package", Err: err}
	}

	d := &Document{}
	var main []byte
	for _, f := range zr.File {
		content, err := readPart(f)
		if err != nil {
			return nil, err
		}
		d.parts = append(d.parts, part{header: f.FileHeader, data: content})
		if f.Name == DocumentPart {
			main = content
		}
	}
	if main == nil {
		return nil, errors.NewParse("docx", DocumentPart, "part missing from package")
	}

	root, err := xmlquery.Parse(bytes.NewReader(main))
	if err != nil {
		return nil, &errors.ParseError{Format: "XML", Path: DocumentPart, Message: err.Error(), Err: err}
	}
	d.root = root
	if el := documentElement(root); el != nil {
		for _, a := range el.Attr {
			if isNamespaceDecl(a) {
				d.decls = append(d.decls, a)
			}
		}
	}
	wordml.NormalizeAttrs(root)
	d.index()
	return d, nil
}

func readPart(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxPartSize {
		return nil, errors.NewValidation(f.Name, "part exceeds maximum size")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
	}
	if len(data) > MaxPartSize {
		return nil, errors.NewValidation(f.Name, "part exceeds maximum size")
	}
	return data, nil
}

// index rebuilds the paragraph list and start offsets. Offsets count one
// position per paragraph mark.
func (d *Document) index() {
	d.paras = xmlquery.QuerySelectorAll(d.root, bodyParagraphExpr)
	d.starts = make([]int, len(d.paras))
	pos := 0
	for i, p := range d.paras {
		d.starts[i] = pos
		pos += wordml.FromNode(p).Runs().Len() + 1
	}
}

// ParagraphCount returns the number of body paragraphs.
func (d *Document) ParagraphCount() int {
	return len(d.paras)
}

// Paragraph returns the i-th body paragraph.
func (d *Document) Paragraph(i int) (patch.HostParagraph, error) {
	if i < 0 || i >= len(d.paras) {
		return nil, errors.NewNotFound("paragraph index", fmt.Sprint(i))
	}
	return &Paragraph{doc: d, index: i}, nil
}

// Decode parses a paragraph fragment produced by Paragraph.Fragment.
func (d *Document) Decode(data []byte) (patch.Fragment, error) {
	f, err := wordml.Parse(data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Modified reports whether any paragraph has been rewritten since the
// document was opened or last saved.
func (d *Document) Modified() bool {
	return d.dirty
}

// Bytes serializes the package, replacing the main document part.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	main := []byte(d.root.OutputXML(false))
	for _, p := range d.parts {
		header := p.header
		data := p.data
		if header.Name == DocumentPart {
			data = main
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     header.Name,
			Method:   header.Method,
			Modified: header.Modified,
			Comment:  header.Comment,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", header.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize package: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the package to path through a temporary file in the same
// directory.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".docrevise-*.docx")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	d.dirty = false
	return nil
}

// Paragraph is a handle to one body paragraph. It resolves its node at
// call time, so a handle stays valid across writes to other paragraphs.
type Paragraph struct {
	doc   *Document
	index int
}

func (p *Paragraph) node() (*xmlquery.Node, error) {
	if p.index >= len(p.doc.paras) {
		return nil, errors.NewNotFound("paragraph index", fmt.Sprint(p.index))
	}
	return p.doc.paras[p.index], nil
}

// ID returns the paragraph's w14:paraId. Paragraphs without one get a
// positional identity "para-<index>". A malformed paraId is an error.
func (p *Paragraph) ID() (string, error) {
	n, err := p.node()
	if err != nil {
		return "", err
	}
	id := wordml.ParagraphID(n)
	if id == "" {
		return fmt.Sprintf("para-%d", p.index), nil
	}
	if !validParaID(id) {
		return "", errors.NewValidation("w14:paraId", fmt.Sprintf("malformed value %q", id))
	}
	return id, nil
}

// Start returns the paragraph's document-absolute character offset.
func (p *Paragraph) Start() int {
	if p.index >= len(p.doc.starts) {
		return -1
	}
	return p.doc.starts[p.index]
}

// Fragment serializes the paragraph as a standalone <w:p> element.
func (p *Paragraph) Fragment() ([]byte, error) {
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	out := n.OutputXML(true)
	head := "<" + qualifiedName(n)
	if !strings.HasPrefix(out, head) {
		return nil, errors.NewSerialization("read", fmt.Errorf("unexpected element output %.20q", out))
	}

	var b strings.Builder
	b.WriteString(head)
	for _, a := range p.doc.decls {
		if hasAttr(n, a) {
			continue
		}
		fmt.Fprintf(&b, ` %s="%s"`, attrName(a), html.EscapeString(a.Value))
	}
	b.WriteString(out[len(head):])
	return []byte(b.String()), nil
}

// SetFragment replaces the paragraph with the given fragment in a single
// tree mutation.
func (p *Paragraph) SetFragment(data []byte) error {
	old, err := p.node()
	if err != nil {
		return err
	}
	f, err := wordml.Parse(data)
	if err != nil {
		return err
	}
	repl := f.Node()

	kept := repl.Attr[:0]
	for _, a := range repl.Attr {
		if isNamespaceDecl(a) && p.doc.declares(a) {
			continue
		}
		kept = append(kept, a)
	}
	repl.Attr = kept

	xmlquery.RemoveFromTree(repl)
	xmlquery.AddImmediateSibling(old, repl)
	xmlquery.RemoveFromTree(old)

	p.doc.dirty = true
	p.doc.index()
	return nil
}

func (d *Document) declares(a xmlquery.Attr) bool {
	for _, decl := range d.decls {
		if decl.Name == a.Name && decl.Value == a.Value {
			return true
		}
	}
	return false
}

func documentElement(root *xmlquery.Node) *xmlquery.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

func isNamespaceDecl(a xmlquery.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

func hasAttr(n *xmlquery.Node, a xmlquery.Attr) bool {
	for _, x := range n.Attr {
		if x.Name == a.Name {
			return true
		}
	}
	return false
}

func attrName(a xmlquery.Attr) string {
	if a.Name.Space == "" {
		return a.Name.Local
	}
	return a.Name.Space + ":" + a.Name.Local
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix == "" {
		return n.Data
	}
	return n.Prefix + ":" + n.Data
}

// validParaID checks the ST_LongHexNumber form Word writes: eight hex digits.
func validParaID(id string) bool {
	if len(id) != 8 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
