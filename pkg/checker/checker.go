// Package checker validates test documents and script files before they
// are saved or run.
//
// Test documents (.jedi, .padawan) are three levels deep: scenarios hold
// cases, cases hold conditions. The checker reports every missing tag,
// every fragment that fails to compile and every validate fragment without
// an assertion in one pass. It never returns an error: all problems end up in
// the report.
package checker

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/padawan/pkg/document"
	"github.com/ormasoftchile/padawan/pkg/fragment"
)

// codingMarker is stripped from script files before compiling them.
const codingMarker = "# -*- coding: utf-8 -*-"

var (
	fragmentSuffixes = map[string]bool{"py": true, "star": true}
	documentSuffixes = map[string]bool{"jedi": true, "padawan": true}
)

// Checker is safe for concurrent use.
type Checker struct {
	interp fragment.Interpreter
	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithInterpreter sets the interpreter that compiles fragments.
func WithInterpreter(in fragment.Interpreter) Option {
	return func(c *Checker) { c.interp = in }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// New returns a Checker. Without WithInterpreter fragments are Starlark.
func New(opts ...Option) *Checker {
	c := &Checker{}
	for _, o := range opts {
		o(c)
	}
	if c.interp == nil {
		c.interp = fragment.MustNew(fragment.DialectStarlark)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Interpreter returns the interpreter used for fragments.
func (c *Checker) Interpreter() fragment.Interpreter { return c.interp }

// FileKind is how Check treats a path.
type FileKind int

const (
	KindUnchecked FileKind = iota
	KindFragment
	KindDocument
)

// Classify tells how Check treats path, by the text after its last dot.
func Classify(path string) FileKind {
	base := filepath.Base(path)
	suffix := base
	if i := strings.LastIndex(base, "."); i >= 0 {
		suffix = base[i+1:]
	}
	switch {
	case fragmentSuffixes[suffix]:
		return KindFragment
	case documentSuffixes[suffix]:
		return KindDocument
	default:
		return KindUnchecked
	}
}

// Check dispatches on the file suffix: script files are compiled as one
// fragment, test documents get the full structure check, and anything else
// passes.
func (c *Checker) Check(path, text string) (bool, string) {
	var report string
	switch Classify(path) {
	case KindFragment:
		report = c.CheckFragment(filepath.Base(path), text)
	case KindDocument:
		_, report = c.CheckDocument(text)
	default:
		return true, ""
	}
	passed := report == ""
	c.logger.Debug("check", "path", path, "passed", passed)
	return passed, report
}

// CheckFragment compiles content as a single fragment attributed to name.
// It returns "" when content compiles, else the newline-prefixed error.
func (c *Checker) CheckFragment(name, content string) string {
	src := strings.ReplaceAll(content, codingMarker, "")
	if err := c.interp.Compile(name, src); err != nil {
		return "\n" + err.Error()
	}
	return ""
}

// CheckDocument validates a test document and returns whether it passed
// together with the report.
func (c *Checker) CheckDocument(text string) (bool, string) {
	report := Report(c.Diagnose(text))
	return report == "", report
}

// Diagnose runs the structure check and returns the findings in report
// order. A parse failure yields a single ParseError finding.
func (c *Checker) Diagnose(text string) []*Diagnostic {
	doc, err := document.ParseMap(text)
	if err != nil {
		c.logger.Debug("document parse failed", "error", err)
		return []*Diagnostic{{Kind: ParseError, Message: err.Error()}}
	}
	w := &walker{interp: c.interp}
	w.root(document.Lowercase(doc).(*document.Map))
	return w.diags
}
