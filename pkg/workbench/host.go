package workbench

import (
	"fmt"

	"github.com/ormasoftchile/padawan/pkg/fragment"
)

var hostAttrs = []string{
	"buffers", "check", "check_text", "close", "log",
	"open", "save", "set_text", "text", "version",
}

// Attrs lists what code sent over the bridge can reach through self.
func (w *Workbench) Attrs() []string {
	return append([]string(nil), hostAttrs...)
}

// Attr resolves one attribute of self. Callables run against the live
// workbench.
func (w *Workbench) Attr(name string) (any, error) {
	switch name {
	case "version":
		return w.version, nil
	case "buffers":
		return w.Buffers(), nil
	case "log":
		return w.Log(), nil
	case "open":
		return fragment.Func(func(args ...any) (any, error) {
			path, err := stringArgs("open", args, 1)
			if err != nil {
				return nil, err
			}
			return nil, w.Open(path[0])
		}), nil
	case "set_text":
		return fragment.Func(func(args ...any) (any, error) {
			a, err := stringArgs("set_text", args, 2)
			if err != nil {
				return nil, err
			}
			w.SetText(a[0], a[1])
			return nil, nil
		}), nil
	case "text":
		return fragment.Func(func(args ...any) (any, error) {
			a, err := stringArgs("text", args, 1)
			if err != nil {
				return nil, err
			}
			return w.Text(a[0])
		}), nil
	case "save":
		return fragment.Func(func(args ...any) (any, error) {
			a, err := stringArgs("save", args, 1)
			if err != nil {
				return nil, err
			}
			return w.Save(a[0])
		}), nil
	case "close":
		return fragment.Func(func(args ...any) (any, error) {
			a, err := stringArgs("close", args, 1)
			if err != nil {
				return nil, err
			}
			return nil, w.Close(a[0])
		}), nil
	case "check":
		return fragment.Func(func(args ...any) (any, error) {
			a, err := stringArgs("check", args, 1)
			if err != nil {
				return nil, err
			}
			passed, report, err := w.Check(a[0])
			if err != nil {
				return nil, err
			}
			return checkResult(passed, report), nil
		}), nil
	case "check_text":
		return fragment.Func(func(args ...any) (any, error) {
			a, err := stringArgs("check_text", args, 2)
			if err != nil {
				return nil, err
			}
			return checkResult(w.CheckText(a[0], a[1])), nil
		}), nil
	}
	return nil, fmt.Errorf("workbench has no attribute %q", name)
}

func checkResult(passed bool, report string) map[string]any {
	return map[string]any{"passed": passed, "report": report}
}

func stringArgs(fn string, args []any, n int) ([]string, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s: got %d arguments, want %d", fn, len(args), n)
	}
	out := make([]string, n)
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %T, want string", fn, i+1, a)
		}
		out[i] = s
	}
	return out, nil
}

var _ fragment.Host = (*Workbench)(nil)
