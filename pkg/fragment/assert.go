package fragment

import (
	"fmt"

	"go.starlark.net/starlark"
)

// assertions are the helpers every starlark fragment can call. Starlark has
// no assert statement, so validate blocks use these instead. A binding of
// the same name shadows the helper.
var assertions = starlark.StringDict{
	"assert_true": starlark.NewBuiltin("assert_true", assertTrue),
	"assert_eq":   starlark.NewBuiltin("assert_eq", assertEq),
	"assert_ne":   starlark.NewBuiltin("assert_ne", assertNe),
}

// AssertionNames lists the helpers available to starlark fragments.
func AssertionNames() []string {
	return assertions.Keys()
}

func assertTrue(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	var msg string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cond", &cond, "msg?", &msg); err != nil {
		return nil, err
	}
	if cond.Truth() {
		return starlark.None, nil
	}
	if msg == "" {
		msg = fmt.Sprintf("%s is not true", cond)
	}
	return nil, fmt.Errorf("assertion failed: %s", msg)
}

func assertEq(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return compare(b, args, kwargs, true)
}

func assertNe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return compare(b, args, kwargs, false)
}

func compare(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, wantEqual bool) (starlark.Value, error) {
	var got, want starlark.Value
	var msg string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "got", &got, "want", &want, "msg?", &msg); err != nil {
		return nil, err
	}
	eq, err := starlark.Equal(got, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if eq == wantEqual {
		return starlark.None, nil
	}
	op := "!="
	if !wantEqual {
		op = "=="
	}
	if msg == "" {
		msg = fmt.Sprintf("%s %s %s", got, op, want)
	}
	return nil, fmt.Errorf("assertion failed: %s", msg)
}
