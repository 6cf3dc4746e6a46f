package fragment

import (
	"context"
	"errors"
	"fmt"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions relaxes the Starlark defaults so fragments can be written the
// way test authors write scripts: top-level loops and ifs, reassigned
// globals, while loops, sets and recursion.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

type starlarkInterpreter struct {
	opts options
}

func newStarlark(o options) *starlarkInterpreter {
	return &starlarkInterpreter{opts: o}
}

func (s *starlarkInterpreter) Dialect() string { return DialectStarlark }

// Compile parses and resolves src. Free names are accepted since bindings
// are only known when the fragment runs.
func (s *starlarkInterpreter) Compile(name, src string) error {
	f, err := fileOptions.Parse(name, src, 0)
	if err != nil {
		return convertStarlarkError(name, src, err)
	}
	acceptAll := func(string) bool { return true }
	if err := resolve.File(f, acceptAll, starlark.Universe.Has); err != nil {
		return convertStarlarkError(name, src, err)
	}
	return nil
}

func (s *starlarkInterpreter) Exec(ctx context.Context, src string, bindings map[string]any, self Host) (scope Scope, err error) {
	f, err := fileOptions.Parse("fragment", src, 0)
	if err != nil {
		return nil, convertStarlarkError("fragment", src, err)
	}

	// Bindings are module globals rather than predeclared names so that
	// fragments can rebind them, augmented assignment included.
	globals := make(starlark.StringDict, len(bindings)+len(assertions)+1)
	for k, v := range assertions {
		globals[k] = v
	}
	var host *hostValue
	if self != nil {
		host = &hostValue{host: self}
		globals[SelfName] = host
	}
	for k, v := range bindings {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", k, err)
		}
		globals[k] = sv
	}

	thread := &starlark.Thread{Name: "fragment"}
	thread.Print = func(_ *starlark.Thread, msg string) {
		if s.opts.print != nil {
			s.opts.print(msg)
			return
		}
		s.opts.logger.Debug("fragment print", "msg", msg)
	}
	if s.opts.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.opts.maxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			scope, err = nil, fmt.Errorf("panic in fragment: %v", r)
		}
	}()

	if err := starlark.ExecREPLChunk(f, thread, globals); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, errors.New(evalErr.Msg)
		}
		return nil, convertStarlarkError("fragment", src, err)
	}

	scope = make(Scope, len(globals))
	for k, v := range globals {
		if isAmbient(k, v, host) {
			continue
		}
		gv, err := fromStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		scope[k] = gv
	}
	return scope, nil
}

// isAmbient reports whether a global is one the interpreter supplied and
// the fragment left untouched.
func isAmbient(name string, v starlark.Value, host *hostValue) bool {
	if h, ok := v.(*hostValue); ok && h == host {
		return true
	}
	b, ok := v.(*starlark.Builtin)
	return ok && assertions[name] == b
}

// convertStarlarkError maps parse and resolve failures onto SyntaxError.
// Other errors pass through.
func convertStarlarkError(name, src string, err error) error {
	var se syntax.Error
	if errors.As(err, &se) {
		return &SyntaxError{
			Name:   name,
			Line:   int(se.Pos.Line),
			Col:    int(se.Pos.Col),
			Source: sourceLine(src, int(se.Pos.Line)),
			Msg:    se.Msg,
		}
	}
	var list resolve.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		return &SyntaxError{
			Name:   name,
			Line:   int(first.Pos.Line),
			Col:    int(first.Pos.Col),
			Source: sourceLine(src, int(first.Pos.Line)),
			Msg:    first.Msg,
		}
	}
	return err
}
