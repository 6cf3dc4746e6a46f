package fragment

import (
	"context"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
)

// ResultName is the scope entry holding an expression's value in the expr
// dialect.
const ResultName = "result"

type exprInterpreter struct {
	opts options
}

func newExpr(o options) *exprInterpreter {
	return &exprInterpreter{opts: o}
}

func (e *exprInterpreter) Dialect() string { return DialectExpr }

func (e *exprInterpreter) Compile(name, src string) error {
	if _, err := expr.Compile(src); err != nil {
		return convertExprError(name, src, err)
	}
	return nil
}

func (e *exprInterpreter) Exec(ctx context.Context, src string, bindings map[string]any, self Host) (Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := make(map[string]any, len(bindings)+1)
	for k, v := range bindings {
		env[k] = v
	}
	if self != nil {
		hv, err := hostEnv(self)
		if err != nil {
			return nil, err
		}
		env[SelfName] = hv
	}

	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return nil, convertExprError("fragment", src, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, err
	}

	scope := make(Scope, len(bindings)+1)
	for k, v := range bindings {
		scope[k] = v
	}
	scope[ResultName] = out
	return scope, nil
}

// hostEnv flattens a Host into a map so expressions can use self.name and
// self.fn(args).
func hostEnv(h Host) (map[string]any, error) {
	env := make(map[string]any)
	for _, name := range h.Attrs() {
		v, err := h.Attr(name)
		if err != nil {
			return nil, fmt.Errorf("self.%s: %w", name, err)
		}
		if fn, ok := v.(Func); ok {
			v = (func(args ...any) (any, error))(fn)
		}
		env[name] = v
	}
	return env, nil
}

func convertExprError(name, src string, err error) error {
	var fe *file.Error
	if errors.As(err, &fe) {
		return &SyntaxError{
			Name:   name,
			Line:   fe.Line,
			Col:    fe.Column + 1,
			Source: sourceLine(src, fe.Line),
			Msg:    fe.Message,
		}
	}
	return &SyntaxError{Name: name, Msg: err.Error()}
}
