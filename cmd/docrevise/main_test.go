package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/FocuswithJustin/docrevise/core/docx"
	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/core/sqlite"
	"github.com/FocuswithJustin/docrevise/internal/revision"
)

const testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml">` +
	`<w:body>` +
	`<w:p w14:paraId="00000001"><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>` +
	`<w:p w14:paraId="00000002"><w:r><w:t>The cat sat</w:t></w:r></w:p>` +
	`<w:p w14:paraId="00000003"/>` +
	`</w:body></w:document>`

// fixture is a temp directory holding a document and an isolated config.
type fixture struct {
	dir  string
	doc  string
	args []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct{ name, body string }{
		{"[Content_Types].xml", `<Types/>`},
		{docx.DocumentPart, testDocument},
	} {
		w, err := zw.Create(part.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	doc := filepath.Join(dir, "draft.docx")
	if err := os.WriteFile(doc, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		dir: dir,
		doc: doc,
		args: []string{
			"--config", filepath.Join(dir, "missing.toml"),
			"--undo-db", filepath.Join(dir, "undo.db"),
			"--log-level", "error",
		},
	}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(append(append([]string(nil), f.args...), args...), &out)
	return out.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	if err != nil {
		t.Fatalf("docrevise %s: %v", strings.Join(args, " "), err)
	}
	return out
}

// runsOf reopens path and returns the runs of one paragraph.
func runsOf(t *testing.T, path, id string) []string {
	t.Helper()
	doc, err := docx.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	snap, err := patch.New(doc, doc, nil).Snapshot(id)
	if err != nil {
		t.Fatalf("Snapshot(%s) failed: %v", id, err)
	}
	return snap.Runs.Contents()
}

func TestParagraphsCommand(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "paragraphs", f.doc)

	var paras []paragraphJSON
	if err := json.Unmarshal([]byte(out), &paras); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(paras) != 3 {
		t.Fatalf("got %d paragraphs, want 3", len(paras))
	}
	if p := paras[0]; p.ParaID != "00000001" || p.Position != 0 || !reflect.DeepEqual(p.TextArray, []string{"Hello ", "world"}) {
		t.Errorf("paragraph 0 = %+v", p)
	}
	if p := paras[1]; p.Text != "The cat sat" || p.Position != 12 {
		t.Errorf("paragraph 1 = %+v", p)
	}
}

func TestLocateCommand(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "locate", f.doc, "00000002")
	var loc patch.LocateResult
	if err := json.Unmarshal([]byte(out), &loc); err != nil || !loc.Found || loc.Position != 12 {
		t.Errorf("locate = %s (%v)", out, err)
	}

	out, err := f.run(t, "locate", f.doc, "FFFFFFFF")
	if err == nil {
		t.Error("locate of a missing paragraph succeeded")
	}
	if !strings.Contains(out, `"position": -1`) {
		t.Errorf("missing paragraph output = %s", out)
	}
}

func TestRewriteCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"live text", nil, []string{"Hi t", "here"}},
		{"run texts", []string{"--run", "Hello ", "--run", "world"}, []string{"Hi t", "here"}},
		{"stale full text splices", []string{"--from", "world"}, []string{"Hello ", "Hi there"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			args := append([]string{"rewrite", f.doc, "00000001", "--to", "Hi there"}, tt.args...)
			out := f.mustRun(t, args...)

			var res patch.Result
			if err := json.Unmarshal([]byte(out), &res); err != nil || !res.Replaced {
				t.Errorf("result = %s (%v)", out, err)
			}
			if got := runsOf(t, f.doc, "00000001"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("runs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewriteOut(t *testing.T) {
	f := newFixture(t)
	before, err := os.ReadFile(f.doc)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(f.dir, "final.docx")
	f.mustRun(t, "rewrite", f.doc, "00000002", "--to", "A dog lay", "--out", target)

	after, err := os.ReadFile(f.doc)
	if err != nil || !bytes.Equal(before, after) {
		t.Error("input document changed despite --out")
	}
	if got := runsOf(t, target, "00000002"); !reflect.DeepEqual(got, []string{"A dog lay"}) {
		t.Errorf("output runs = %q", got)
	}

	if _, err := f.run(t, "rewrite", f.doc, "00000002", "--to", "x", "--out", filepath.Join(f.dir, "notes.txt")); err == nil {
		t.Error("non-document output path accepted")
	}
}

func TestReplaceThenUndoAcrossInvocations(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t, "replace", f.doc, "00000002", "--from", "cat", "--to", "dog")
	if got := runsOf(t, f.doc, "00000002"); got[0] != "The dog sat" {
		t.Fatalf("after replace runs = %q", got)
	}

	out := f.mustRun(t, "undo", f.doc)
	var res patch.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.Strategy != patch.StrategyUndo || res.Position != 12 {
		t.Errorf("undo = %s (%v)", out, err)
	}
	if got := runsOf(t, f.doc, "00000002"); got[0] != "The cat sat" {
		t.Errorf("after undo runs = %q", got)
	}

	if _, err := f.run(t, "undo", f.doc); err == nil {
		t.Error("second undo succeeded")
	}
}

func TestPendingCommand(t *testing.T) {
	f := newFixture(t)
	pending := func() pendingJSON {
		t.Helper()
		var p pendingJSON
		out := f.mustRun(t, "pending")
		if err := json.Unmarshal([]byte(out), &p); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		return p
	}

	if p := pending(); p.Pending || p.Record != nil {
		t.Errorf("fresh undo database = %+v", p)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "undo.db")); !os.IsNotExist(err) {
		t.Error("pending created the undo database")
	}

	f.mustRun(t, "replace", f.doc, "00000002", "--from", "cat", "--to", "dog")
	p := pending()
	if !p.Pending || p.Record == nil || p.Record.ParagraphID != "00000002" || p.Record.Replacement != "dog" || p.Record.Position != 12 {
		t.Errorf("after replace = %+v", p)
	}

	f.mustRun(t, "undo", f.doc)
	if p := pending(); p.Pending {
		t.Errorf("after undo = %+v", p)
	}
}

func TestReplaceNotFoundLeavesFile(t *testing.T) {
	f := newFixture(t)
	before, _ := os.ReadFile(f.doc)

	out := f.mustRun(t, "replace", f.doc, "00000002", "--from", "giraffe", "--to", "zebra")
	var res patch.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.Replaced || res.Skipped != patch.SkipSubstringNotFound {
		t.Errorf("result = %s (%v)", out, err)
	}
	after, _ := os.ReadFile(f.doc)
	if !bytes.Equal(before, after) {
		t.Error("no-op rewrote the document")
	}
}

func TestScriptCommand(t *testing.T) {
	f := newFixture(t)
	script := filepath.Join(f.dir, "edits.txt")
	src := "rewrite \"00000001\" to \"Hi there\"\nreplace \"cat\" with \"dog\" in \"00000002\"\nlocate \"00000002\"\n"
	if err := os.WriteFile(script, []byte(src), 0600); err != nil {
		t.Fatal(err)
	}

	out := f.mustRun(t, "script", f.doc, script)
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("got %d outcome lines:\n%s", lines, out)
	}
	if !strings.Contains(out, "found=true position=9") {
		t.Errorf("locate line missing:\n%s", out)
	}
	if got := runsOf(t, f.doc, "00000002"); got[0] != "The dog sat" {
		t.Errorf("runs = %q", got)
	}

	if err := os.WriteFile(script, []byte("undo\nundo\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.run(t, "--memory-undo", "script", f.doc, script); err == nil {
		t.Error("script with failing commands reported success")
	}
}

func TestApplyCommand(t *testing.T) {
	f := newFixture(t)
	revisions := filepath.Join(f.dir, "revised.json")
	body := "```json\n" + `[
		{"paraID": "00000001", "text": "Hello world", "corrections": []},
		{"paraID": "00000002", "text": "The dog sat", "corrections": [
			{"originText": "cat", "replacedText": "dog", "reason": "animal"}
		]}
	]` + "\n```"
	if err := os.WriteFile(revisions, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	out := f.mustRun(t, "apply", f.doc, revisions, "--mode", "correct")
	var report applyReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report.Summary != (revision.Summary{Applied: 1}) {
		t.Errorf("summary = %+v", report.Summary)
	}
	if got := runsOf(t, f.doc, "00000002"); got[0] != "The dog sat" {
		t.Errorf("runs = %q", got)
	}
	if got := runsOf(t, f.doc, "00000001"); !reflect.DeepEqual(got, []string{"Hello ", "world"}) {
		t.Errorf("uncorrected paragraph changed: %q", got)
	}

	if _, err := f.run(t, "apply", f.doc, revisions, "--mode", "shuffle"); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestPrepareCommand(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "prepare", f.doc, "--chunk-size", "15")

	var batches [][]revision.Item
	if err := json.Unmarshal([]byte(out), &batches); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(batches) != 2 || batches[0][0].ParaID != "00000001" || batches[1][0].Text != "The cat sat" {
		t.Errorf("batches = %+v", batches)
	}
}

func TestPreparePlain(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		size string
		want []string
	}{
		{"100", []string{"Hello world\n\nThe cat sat"}},
		{"15", []string{"Hello world", "The cat sat"}},
	}
	for _, tt := range tests {
		out := f.mustRun(t, "prepare", f.doc, "--plain", "--chunk-size", tt.size)
		var got []string
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("size %s: chunks = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestConfigFile(t *testing.T) {
	f := newFixture(t)
	cfgPath := filepath.Join(f.dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[revision]\nchunk_size = 100\n"), 0600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := run([]string{"--config", cfgPath, "--memory-undo", "prepare", f.doc}, &out); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	var batches [][]revision.Item
	if err := json.Unmarshal(out.Bytes(), &batches); err != nil || len(batches) != 1 {
		t.Errorf("batches = %s (%v)", out.String(), err)
	}

	if err := os.WriteFile(cfgPath, []byte("[log]\nlevel = \"loud\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"--config", cfgPath, "version"}, &out); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestRejectsNonPackage(t *testing.T) {
	f := newFixture(t)
	plain := filepath.Join(f.dir, "plain.docx")
	if err := os.WriteFile(plain, []byte("not a zip"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.run(t, "paragraphs", plain); err == nil {
		t.Error("non-package document accepted")
	}
}

func TestVersionCommand(t *testing.T) {
	f := newFixture(t)
	out := f.mustRun(t, "version")
	if !strings.HasPrefix(out, "docrevise "+version+"\n") {
		t.Errorf("version output = %q", out)
	}
	info := sqlite.GetInfo()
	if !strings.Contains(out, info.Package) || !strings.Contains(out, fmt.Sprintf("cgo=%t", info.IsCGO)) {
		t.Errorf("version output lacks driver info: %q", out)
	}
}
