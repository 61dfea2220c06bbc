// Command docrevise edits the text of Word documents paragraph by
// paragraph without disturbing run formatting.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/docrevise/core/docx"
	"github.com/FocuswithJustin/docrevise/core/patch"
	"github.com/FocuswithJustin/docrevise/core/script"
	"github.com/FocuswithJustin/docrevise/core/sqlite"
	"github.com/FocuswithJustin/docrevise/internal/api"
	"github.com/FocuswithJustin/docrevise/internal/config"
	"github.com/FocuswithJustin/docrevise/internal/logging"
	"github.com/FocuswithJustin/docrevise/internal/revision"
	"github.com/FocuswithJustin/docrevise/internal/undostore"
	"github.com/FocuswithJustin/docrevise/internal/validation"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config     string `name:"config" help:"Config file path" type:"path" default:"${config_path}"`
	LogLevel   string `name:"log-level" help:"Log level (debug, info, warn, error); overrides the config file"`
	LogFormat  string `name:"log-format" help:"Log format (text, json); overrides the config file"`
	UndoDB     string `name:"undo-db" help:"Undo database path; overrides the config file" type:"path"`
	MemoryUndo bool   `name:"memory-undo" help:"Keep the undo record in memory only"`

	cfg *config.Config
	out io.Writer
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Paragraphs ParagraphsCmd `cmd:"" help:"List paragraphs as JSON"`
	Locate     LocateCmd     `cmd:"" help:"Report where a paragraph starts"`
	Rewrite    RewriteCmd    `cmd:"" help:"Replace a whole paragraph's text"`
	Replace    ReplaceCmd    `cmd:"" help:"Replace the first occurrence of a string in a paragraph"`
	Script     ScriptCmd     `cmd:"" help:"Run an edit script"`
	Apply      ApplyCmd      `cmd:"" help:"Apply a reviser's JSON output"`
	Prepare    PrepareCmd    `cmd:"" help:"Print paragraphs as revision batches"`
	Undo       UndoCmd       `cmd:"" help:"Revert the most recent patch"`
	Pending    PendingCmd    `cmd:"" help:"Show the patch undo would revert"`
	Serve      ServeCmd      `cmd:"" help:"Serve a document over HTTP"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

// setup loads the config file, applies flag overrides and starts logging.
func (g *Globals) setup(out io.Writer) error {
	g.out = out
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if g.UndoDB != "" {
		cfg.Undo.DB = g.UndoDB
	}
	if g.MemoryUndo {
		cfg.Undo.DB = ""
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logging.InitLogger(level, format)
	g.cfg = cfg
	return nil
}

// workspace is an open document with its patcher.
type workspace struct {
	path    string
	doc     *docx.Document
	patcher *patch.Patcher
	store   *undostore.Store
}

func (g *Globals) open(path string) (*workspace, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid document path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	err = validation.ValidatePackage(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	doc, err := docx.Open(path)
	if err != nil {
		return nil, err
	}
	store, err := g.undoStore()
	if err != nil {
		return nil, err
	}
	w := &workspace{path: path, doc: doc, store: store}
	w.patcher = patch.New(doc, doc, w.slot())
	return w, nil
}

// undoStore opens the configured undo database, or returns nil when undo
// is kept in memory.
func (g *Globals) undoStore() (*undostore.Store, error) {
	path, err := g.cfg.UndoPath()
	if err != nil || path == "" {
		return nil, err
	}
	return undostore.Open(path)
}

// slot keeps a nil store from becoming a non-nil interface.
func (w *workspace) slot() patch.UndoSlot {
	if w.store == nil {
		return nil
	}
	return w.store
}

func (w *workspace) Close() {
	if w.store != nil {
		w.store.Close()
	}
}

// save writes the document to out, or back to its own path.
func (w *workspace) save(out string) error {
	if !w.doc.Modified() {
		return nil
	}
	target := w.path
	if out != "" {
		target = out
	}
	if err := w.doc.Save(target); err != nil {
		return err
	}
	logging.Info("document_saved", "path", target)
	return nil
}

// checkOut rejects a bad --out before anything is patched.
func checkOut(out string) error {
	if out == "" {
		return nil
	}
	if err := validation.ValidateDocumentPath(out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	return nil
}

func (g *Globals) printJSON(v interface{}) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ParagraphsCmd lists paragraphs.
type ParagraphsCmd struct {
	Doc string `arg:"" help:"Document path" type:"existingfile"`
}

type paragraphJSON struct {
	ParaID    string   `json:"paraID"`
	Position  int      `json:"position"`
	Text      string   `json:"text"`
	TextArray []string `json:"textArray"`
}

func (c *ParagraphsCmd) Run(g *Globals) error {
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	out := []paragraphJSON{}
	for _, snap := range w.patcher.Paragraphs() {
		out = append(out, paragraphJSON{
			ParaID:    snap.ID,
			Position:  snap.Position,
			Text:      snap.Runs.Text(),
			TextArray: snap.Runs.Contents(),
		})
	}
	return g.printJSON(out)
}

// LocateCmd reports a paragraph's start offset.
type LocateCmd struct {
	Doc string `arg:"" help:"Document path" type:"existingfile"`
	ID  string `arg:"" help:"Paragraph identity"`
}

func (c *LocateCmd) Run(g *Globals) error {
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	loc := w.patcher.Locate(c.ID)
	if err := g.printJSON(loc); err != nil {
		return err
	}
	if !loc.Found {
		return fmt.Errorf("paragraph %q not found", c.ID)
	}
	return nil
}

// RewriteCmd replaces a whole paragraph.
type RewriteCmd struct {
	Doc  string   `arg:"" help:"Document path" type:"existingfile"`
	ID   string   `arg:"" help:"Paragraph identity"`
	To   string   `required:"" help:"Replacement text"`
	From string   `help:"Text the paragraph is expected to hold" xor:"original"`
	Runs []string `name:"run" help:"Expected run text, once per run in order" sep:"none" xor:"original"`
	Out  string   `help:"Write to this path instead of the input" type:"path"`
}

func (c *RewriteCmd) Run(g *Globals) error {
	if err := checkOut(c.Out); err != nil {
		return err
	}
	if err := validation.ValidateText(c.To); err != nil {
		return fmt.Errorf("replacement: %w", err)
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	var original patch.Original
	switch {
	case c.Runs != nil:
		original = patch.RunTexts(c.Runs)
	case c.From != "":
		original = patch.FullText(c.From)
	default:
		snap, err := w.patcher.Snapshot(c.ID)
		if err != nil {
			return err
		}
		original = patch.FullText(snap.Runs.Text())
	}

	res, err := w.patcher.ApplyFullReplacement(context.Background(), c.ID, original, c.To)
	if err != nil {
		return err
	}
	if err := w.save(c.Out); err != nil {
		return err
	}
	return g.printJSON(res)
}

// ReplaceCmd replaces a substring within a paragraph.
type ReplaceCmd struct {
	Doc  string `arg:"" help:"Document path" type:"existingfile"`
	ID   string `arg:"" help:"Paragraph identity"`
	From string `required:"" help:"Text to find"`
	To   string `required:"" help:"Replacement text"`
	Out  string `help:"Write to this path instead of the input" type:"path"`
}

func (c *ReplaceCmd) Run(g *Globals) error {
	if err := checkOut(c.Out); err != nil {
		return err
	}
	if err := validation.ValidateText(c.To); err != nil {
		return fmt.Errorf("replacement: %w", err)
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	res, err := w.patcher.ApplySpanReplacement(context.Background(), c.ID, c.From, c.To)
	if err != nil {
		return err
	}
	if err := w.save(c.Out); err != nil {
		return err
	}
	return g.printJSON(res)
}

// ScriptCmd runs an edit script.
type ScriptCmd struct {
	Doc  string `arg:"" help:"Document path" type:"existingfile"`
	File string `arg:"" help:"Edit script" type:"existingfile"`
	Out  string `help:"Write to this path instead of the input" type:"path"`
}

func (c *ScriptCmd) Run(g *Globals) error {
	if err := checkOut(c.Out); err != nil {
		return err
	}
	src, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	s, err := script.Parse(c.File, string(src))
	if err != nil {
		return err
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	outcomes, runErr := s.Run(context.Background(), w.patcher)
	for _, o := range outcomes {
		status := describe(o.Result, o.Err)
		if o.Command.Op == script.OpLocate {
			status = fmt.Sprintf("found=%t position=%d", o.Found, o.Result.Position)
		}
		fmt.Fprintf(g.out, "%s:%d\t%s\t%s\t%s\n", c.File, o.Command.Line, o.Command.Op, o.Command.ParagraphID, status)
	}
	if err := w.save(c.Out); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if n := script.Failed(outcomes); n > 0 {
		return fmt.Errorf("%d of %d commands failed", n, len(outcomes))
	}
	return nil
}

func describe(res patch.Result, err error) string {
	switch {
	case err != nil:
		return "error: " + err.Error()
	case res.Replaced:
		return fmt.Sprintf("%s at %d", res.Strategy, res.Position)
	case res.Skipped != "":
		return "skipped: " + res.Skipped
	}
	return "ok"
}

// ApplyCmd writes a reviser's output back into the document.
type ApplyCmd struct {
	Doc       string `arg:"" help:"Document path" type:"existingfile"`
	Revisions string `arg:"" help:"Reviser output (JSON array)" type:"existingfile"`
	Mode      string `help:"rewrite replaces whole paragraphs; correct applies each correction" enum:"rewrite,correct" default:"rewrite"`
	Out       string `help:"Write to this path instead of the input" type:"path"`
}

type applyReport struct {
	Summary  revision.Summary   `json:"summary"`
	Outcomes []revision.Outcome `json:"outcomes"`
	Errors   map[string]string  `json:"errors,omitempty"`
}

func (c *ApplyCmd) Run(g *Globals) error {
	if err := checkOut(c.Out); err != nil {
		return err
	}
	data, err := os.ReadFile(c.Revisions)
	if err != nil {
		return err
	}
	revised, err := revision.ParseRevised(data)
	if err != nil {
		return err
	}
	mode, err := revision.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	revisions := revision.Merge(revision.Extract(w.patcher), revised)
	outcomes, err := revision.Apply(context.Background(), w.patcher, revisions, mode)
	if err != nil {
		return err
	}
	if err := w.save(c.Out); err != nil {
		return err
	}

	report := applyReport{Summary: revision.Summarize(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			if report.Errors == nil {
				report.Errors = map[string]string{}
			}
			report.Errors[o.ParaID] = o.Err.Error()
		}
	}
	return g.printJSON(report)
}

// PrepareCmd prints the paragraphs worth revising, batched.
type PrepareCmd struct {
	Doc       string `arg:"" help:"Document path" type:"existingfile"`
	ChunkSize int    `help:"Maximum characters per batch; defaults to the config file"`
	Plain     bool   `help:"Print plain-text chunks of the document instead of paragraph batches"`
}

func (c *PrepareCmd) Run(g *Globals) error {
	size := c.ChunkSize
	if size <= 0 {
		size = g.cfg.Revision.ChunkSize
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	items := revision.Extract(w.patcher)
	if c.Plain {
		texts := make([]string, len(items))
		for i, it := range items {
			texts[i] = it.Text
		}
		return g.printJSON(revision.Chunk(strings.Join(texts, "\n\n"), size))
	}

	batches := revision.ChunkItems(items, size)
	if batches == nil {
		batches = [][]revision.Item{}
	}
	return g.printJSON(batches)
}

// UndoCmd reverts the most recent patch.
type UndoCmd struct {
	Doc string `arg:"" help:"Document path" type:"existingfile"`
	Out string `help:"Write to this path instead of the input" type:"path"`
}

func (c *UndoCmd) Run(g *Globals) error {
	if err := checkOut(c.Out); err != nil {
		return err
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	res, err := w.patcher.Undo(context.Background())
	if err != nil {
		return err
	}
	if err := w.save(c.Out); err != nil {
		return err
	}
	return g.printJSON(res)
}

// PendingCmd shows the stored undo record without touching any file.
type PendingCmd struct{}

type pendingJSON struct {
	Pending bool              `json:"pending"`
	Record  *patch.UndoRecord `json:"record,omitempty"`
}

func (c *PendingCmd) Run(g *Globals) error {
	path, err := g.cfg.UndoPath()
	if err != nil {
		return err
	}
	out := pendingJSON{}
	if path != "" {
		rec, ok, err := undostore.Peek(context.Background(), path)
		if err != nil {
			return err
		}
		if ok {
			out = pendingJSON{Pending: true, Record: &rec}
		}
	}
	return g.printJSON(out)
}

// ServeCmd serves a document over HTTP until interrupted.
type ServeCmd struct {
	Doc  string `arg:"" help:"Document path" type:"existingfile"`
	Port int    `help:"HTTP port; defaults to the config file"`
}

func (c *ServeCmd) Run(g *Globals) error {
	port := c.Port
	if port == 0 {
		port = g.cfg.API.Port
	}
	w, err := g.open(c.Doc)
	if err != nil {
		return err
	}
	defer w.Close()

	srv, err := api.New(api.Config{
		Port:           port,
		AllowedOrigins: g.cfg.API.AllowedOrigins,
		APIKey:         os.Getenv("DOCREVISE_API_KEY"),
		ChunkSize:      g.cfg.Revision.ChunkSize,
	}, api.NewSession(w.doc, w.path, w.slot()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	_, err := fmt.Fprintf(g.out, "docrevise %s\nsqlite: %s (%s, cgo=%t)\n", version, info.Package, info.DriverType, info.IsCGO)
	return err
}

// run parses args and executes the selected command.
func run(args []string, stdout io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("docrevise"),
		kong.Description("Revise Word paragraphs in place, keeping run formatting"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"config_path": config.DefaultPath()},
		kong.Writers(stdout, os.Stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	if err := cli.Globals.setup(stdout); err != nil {
		return err
	}
	api.Version = version
	return kctx.Run(&cli.Globals)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "docrevise:", err)
		os.Exit(1)
	}
}
