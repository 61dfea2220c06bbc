// Package script parses and runs edit scripts: line-oriented batches of
// paragraph patches.
//
//	# comments run to end of line
//	rewrite "1A2B3C4D" to "new paragraph text"
//	rewrite "1A2B3C4D" from ["Hello", " ", "world"] to "Hi world"
//	rewrite "1A2B3C4D" from "Hello world" to "Hi world"
//	replace "cat" with "dog" in "1A2B3C4D"
//	locate "1A2B3C4D"
//	undo
//
// Strings use Go quoting rules.
package script

import (
	"context"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/core/patch"
)

//nolint:govet // participle grammar tags are not standard struct tags
type scriptGrammar struct {
	Commands []*commandGrammar `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type commandGrammar struct {
	Pos lexer.Position

	Rewrite *rewriteGrammar `  "rewrite" @@`
	Replace *replaceGrammar `| "replace" @@`
	Locate  *string         `| "locate" @String`
	Undo    string          `| @"undo"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type rewriteGrammar struct {
	Paragraph string       `@String`
	From      *fromGrammar `( "from" @@ )?`
	To        string       `"to" @String`
}

//nolint:govet // participle grammar tags are not standard struct tags
type fromGrammar struct {
	List *runListGrammar `  @@`
	Text *string         `| @String`
}

//nolint:govet // participle grammar tags are not standard struct tags
type runListGrammar struct {
	Open string   `@"["`
	Runs []string `( @String ( "," @String )* )? "]"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type replaceGrammar struct {
	Original    string `@String`
	Replacement string `"with" @String`
	Paragraph   string `"in" @String`
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Keyword", Pattern: `[a-z]+`},
	{Name: "Punct", Pattern: `[\[\],]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var scriptParser = participle.MustBuild[scriptGrammar](
	participle.Lexer(scriptLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
)

// Op names a script command.
type Op string

// Script operations.
const (
	OpRewrite Op = "rewrite"
	OpReplace Op = "replace"
	OpLocate  Op = "locate"
	OpUndo    Op = "undo"
)

// Command is one parsed script line.
type Command struct {
	Op          Op
	Line        int
	ParagraphID string
	// Original is set for rewrites that name the prior text. A rewrite
	// without it uses the paragraph's live text.
	Original *patch.Original
	// Find is the substring a replace looks for.
	Find        string
	Replacement string
}

// Script is a parsed edit script.
type Script struct {
	Name     string
	Commands []Command
}

// Parse parses src. name is used in error messages.
func Parse(name, src string) (*Script, error) {
	parsed, err := scriptParser.ParseString(name, src)
	if err != nil {
		return nil, &errors.ParseError{Format: "script", Path: name, Message: err.Error(), Err: err}
	}

	s := &Script{Name: name}
	for _, c := range parsed.Commands {
		cmd, err := convert(c)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, c.Pos.Line)
		}
		s.Commands = append(s.Commands, cmd)
	}
	return s, nil
}

func convert(c *commandGrammar) (Command, error) {
	cmd := Command{Line: c.Pos.Line}
	switch {
	case c.Rewrite != nil:
		cmd.Op = OpRewrite
		cmd.ParagraphID = c.Rewrite.Paragraph
		cmd.Replacement = c.Rewrite.To
		if from := c.Rewrite.From; from != nil {
			var o patch.Original
			if from.List != nil {
				o = patch.RunTexts(from.List.Runs)
			} else {
				o = patch.FullText(*from.Text)
			}
			cmd.Original = &o
		}
	case c.Replace != nil:
		cmd.Op = OpReplace
		cmd.ParagraphID = c.Replace.Paragraph
		cmd.Find = c.Replace.Original
		cmd.Replacement = c.Replace.Replacement
		if cmd.Find == "" {
			return cmd, errors.NewValidation("replace", "search text is empty")
		}
	case c.Locate != nil:
		cmd.Op = OpLocate
		cmd.ParagraphID = *c.Locate
	default:
		cmd.Op = OpUndo
		return cmd, nil
	}
	if strings.TrimSpace(cmd.ParagraphID) == "" {
		return cmd, errors.NewValidation("paragraph", "identity is empty")
	}
	return cmd, nil
}

// Outcome is the result of running one command.
type Outcome struct {
	Command Command
	Result  patch.Result
	// Found is set by locate.
	Found bool
	Err   error
}

// Run executes the commands in order. A failing command does not stop the
// script; its error is recorded in its Outcome. Run stops early only when
// ctx is done.
func (s *Script) Run(ctx context.Context, p *patch.Patcher) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(s.Commands))
	for _, cmd := range s.Commands {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out := Outcome{Command: cmd}
		switch cmd.Op {
		case OpRewrite:
			out.Result, out.Err = rewrite(ctx, p, cmd)
		case OpReplace:
			out.Result, out.Err = p.ApplySpanReplacement(ctx, cmd.ParagraphID, cmd.Find, cmd.Replacement)
		case OpLocate:
			loc := p.Locate(cmd.ParagraphID)
			out.Found = loc.Found
			out.Result = patch.Result{Position: loc.Position}
		case OpUndo:
			out.Result, out.Err = p.Undo(ctx)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func rewrite(ctx context.Context, p *patch.Patcher, cmd Command) (patch.Result, error) {
	if cmd.Original != nil {
		return p.ApplyFullReplacement(ctx, cmd.ParagraphID, *cmd.Original, cmd.Replacement)
	}
	snap, err := p.Snapshot(cmd.ParagraphID)
	if err != nil {
		return patch.Result{Position: -1}, err
	}
	return p.ApplyFullReplacement(ctx, cmd.ParagraphID, patch.FullText(snap.Runs.Text()), cmd.Replacement)
}

// Failed counts outcomes that carry an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
