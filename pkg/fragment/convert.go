package fragment

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"

	"go.starlark.net/starlark"
)

// toStarlark converts a Go value decoded from JSON or YAML, or produced by a
// Host, into a Starlark value.
func toStarlark(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return t, nil
	case bool:
		return starlark.Bool(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case int32:
		return starlark.MakeInt64(int64(t)), nil
	case int64:
		return starlark.MakeInt64(t), nil
	case uint:
		return starlark.MakeUint(t), nil
	case uint64:
		return starlark.MakeUint64(t), nil
	case float32:
		return starlark.Float(t), nil
	case float64:
		return starlark.Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", t, err)
		}
		return starlark.Float(f), nil
	case string:
		return starlark.String(t), nil
	case []string:
		elems := make([]starlark.Value, len(t))
		for i, s := range t {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems), nil
	case []any:
		elems := make([]starlark.Value, len(t))
		for i, e := range t {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(t))
		for _, k := range keys {
			sv, err := toStarlark(t[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	case Func:
		return builtin("func", t), nil
	case func(args ...any) (any, error):
		return builtin("func", t), nil
	case Host:
		return &hostValue{host: t}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// fromStarlark converts a Starlark value into plain Go data that
// encoding/json can serialise.
func fromStarlark(v starlark.Value) (any, error) {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(t), nil
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return i, nil
		}
		bi := t.BigInt()
		f, _ := new(big.Float).SetInt(bi).Float64()
		if math.IsInf(f, 0) {
			return bi.String(), nil
		}
		return f, nil
	case starlark.Float:
		return float64(t), nil
	case starlark.String:
		return string(t), nil
	case *starlark.List:
		return iterableToSlice(t)
	case starlark.Tuple:
		return iterableToSlice(t)
	case *starlark.Set:
		return iterableToSlice(t)
	case *starlark.Dict:
		out := make(map[string]any, t.Len())
		for _, item := range t.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			gv, err := fromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("[%s]: %w", key, err)
			}
			out[key] = gv
		}
		return out, nil
	case *hostValue:
		return t.String(), nil
	default:
		return v.String(), nil
	}
}

func iterableToSlice(it starlark.Iterable) ([]any, error) {
	iter := it.Iterate()
	defer iter.Done()
	out := []any{}
	var x starlark.Value
	for iter.Next(&x) {
		gv, err := fromStarlark(x)
		if err != nil {
			return nil, err
		}
		out = append(out, gv)
	}
	return out, nil
}

func builtin(name string, fn func(args ...any) (any, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		goArgs := make([]any, len(args))
		for i, a := range args {
			gv, err := fromStarlark(a)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", b.Name(), i+1, err)
			}
			goArgs[i] = gv
		}
		res, err := fn(goArgs...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return toStarlark(res)
	})
}

// hostValue exposes a Host as a Starlark object with attributes.
type hostValue struct {
	host Host
}

var _ starlark.HasAttrs = (*hostValue)(nil)

func (h *hostValue) String() string        { return "<self>" }
func (h *hostValue) Type() string          { return "host" }
func (h *hostValue) Freeze()               {}
func (h *hostValue) Truth() starlark.Bool  { return starlark.True }
func (h *hostValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: host") }
func (h *hostValue) AttrNames() []string   { return h.host.Attrs() }

func (h *hostValue) Attr(name string) (starlark.Value, error) {
	v, err := h.host.Attr(name)
	if err != nil {
		return nil, err
	}
	switch fn := v.(type) {
	case Func:
		return builtin(name, fn), nil
	case func(args ...any) (any, error):
		return builtin(name, fn), nil
	}
	return toStarlark(v)
}
