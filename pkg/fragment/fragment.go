// Package fragment compiles and executes the code fragments embedded in test
// documents and sent over the test-mode bridge.
//
// Two dialects are available. "starlark" (the default) accepts statement
// fragments in a Python-like language; "expr" accepts a single expression and
// suits drivers that only need to read state back.
//
// Starlark has no assert statement. Starlark fragments instead see
// assert_true(cond, msg?), assert_eq(got, want, msg?) and
// assert_ne(got, want, msg?), which fail the fragment with an
// "assertion failed" error.
package fragment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Dialect names.
const (
	DialectStarlark = "starlark"
	DialectExpr     = "expr"
)

// SelfName is the binding under which the live host object is exposed.
const SelfName = "self"

// Interpreter compiles and runs fragments.
type Interpreter interface {
	// Dialect returns the dialect name.
	Dialect() string
	// Compile checks src for syntax errors without running it. name is used
	// only to attribute errors.
	Compile(name, src string) error
	// Exec runs src with bindings visible as variables and self bound to
	// SelfName. The returned scope holds every variable the fragment can see
	// after it finishes.
	Exec(ctx context.Context, src string, bindings map[string]any, self Host) (Scope, error)
}

// Host is the live object that fragments reach through SelfName.
type Host interface {
	Attrs() []string
	Attr(name string) (any, error)
}

// Func is a host callable exposed to fragments.
type Func func(args ...any) (any, error)

// Scope maps variable names to Go values after execution.
type Scope map[string]any

// Lookup returns the value of name.
func (s Scope) Lookup(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// Pick returns the values of names. A name missing from the scope is an
// error naming the first such variable.
func (s Scope) Pick(names []string) (map[string]any, error) {
	out := make(map[string]any, len(names))
	for _, n := range names {
		v, ok := s[n]
		if !ok {
			return nil, fmt.Errorf("name '%s' is not defined", n)
		}
		out[n] = v
	}
	return out, nil
}

// SyntaxError describes a fragment that failed to compile.
type SyntaxError struct {
	Name   string
	Line   int
	Col    int
	Source string // offending source line, if known
	Msg    string
}

// Error renders the error the way a traceback tail reads: location, the
// offending line with a caret, then the message.
func (e *SyntaxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  File \"%s\", line %d\n", e.Name, e.Line)
	if e.Source != "" {
		fmt.Fprintf(&b, "    %s\n", e.Source)
		if e.Col > 0 {
			fmt.Fprintf(&b, "    %s^\n", strings.Repeat(" ", e.Col-1))
		}
	}
	fmt.Fprintf(&b, "SyntaxError: %s", e.Msg)
	return b.String()
}

// sourceLine returns the 1-based line of src, without trailing whitespace.
func sourceLine(src string, line int) string {
	if line < 1 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], " \t\r")
}

// Option configures an interpreter.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	print    func(string)
	maxSteps uint64
}

// WithLogger sets the logger used for execution diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPrint routes the fragment's print output to fn.
func WithPrint(fn func(string)) Option {
	return func(o *options) { o.print = fn }
}

// WithMaxSteps bounds the work a single Exec may do. Zero means unbounded.
func WithMaxSteps(n uint64) Option {
	return func(o *options) { o.maxSteps = n }
}

// New returns the interpreter for dialect. An empty dialect selects starlark.
func New(dialect string, opts ...Option) (Interpreter, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	switch strings.ToLower(dialect) {
	case "", DialectStarlark:
		return newStarlark(o), nil
	case DialectExpr:
		return newExpr(o), nil
	default:
		return nil, fmt.Errorf("unknown fragment dialect %q (want %s or %s)", dialect, DialectStarlark, DialectExpr)
	}
}

// MustNew is New for dialects known at compile time.
func MustNew(dialect string, opts ...Option) Interpreter {
	in, err := New(dialect, opts...)
	if err != nil {
		panic(err)
	}
	return in
}

// Dialects lists the supported dialect names.
func Dialects() []string {
	d := []string{DialectStarlark, DialectExpr}
	sort.Strings(d)
	return d
}
