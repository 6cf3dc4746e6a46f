// Package repl implements the interactive driver console: every line typed
// is sent to a workbench in test mode and the answer is printed.
package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/padawan/pkg/bridge"
)

// Caller sends one request and returns its response.
type Caller interface {
	Call(ctx context.Context, code string, input map[string]any, output []string, preludes ...string) (*bridge.Response, error)
}

// Session is a REPL over a Caller.
type Session struct {
	caller   Caller
	output   io.Writer
	inputs   map[string]any
	outputs  []string
	preludes []string
	pending  []string // lines of an unfinished block
}

// New returns a session printing to out; nil means stdout.
func New(c Caller, out io.Writer) *Session {
	if out == nil {
		out = os.Stdout
	}
	return &Session{caller: c, output: out, inputs: make(map[string]any)}
}

// Run reads lines until :quit, EOF or interrupt.
func (s *Session) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range []string{":in", ":out", ":prelude", ":show", ":reset", ":help", ":quit"} {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
		Stdout:          s.output,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(s.output, "padawan driver. Type ':help' for commands.\n\n")
	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if s.Handle(ctx, line) {
			return nil
		}
	}
}

func (s *Session) prompt() string {
	if len(s.pending) > 0 {
		return "... "
	}
	return "padawan> "
}

// Handle processes one input line and reports whether the session should
// end. A line ending in ':' opens a block that runs at the next blank line.
func (s *Session) Handle(ctx context.Context, line string) (quit bool) {
	if len(s.pending) > 0 {
		if strings.TrimSpace(line) != "" {
			s.pending = append(s.pending, line)
			return false
		}
		code := strings.Join(s.pending, "\n")
		s.pending = nil
		s.send(ctx, code)
		return false
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return false
	case strings.HasPrefix(trimmed, ":"):
		return s.command(trimmed)
	case strings.HasSuffix(trimmed, ":"):
		s.pending = []string{line}
		return false
	}
	s.send(ctx, line)
	return false
}

func (s *Session) command(line string) (quit bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":in":
		k, v, err := ParseAssignment(arg)
		if err != nil {
			fmt.Fprintf(s.output, "Error: %v\n", err)
			return false
		}
		s.inputs[k] = v
	case ":out":
		s.outputs = nil
		for _, n := range strings.Split(arg, ",") {
			if n = strings.TrimSpace(n); n != "" {
				s.outputs = append(s.outputs, n)
			}
		}
	case ":prelude":
		if arg == "" {
			fmt.Fprintf(s.output, "Usage: :prelude <code>\n")
			return false
		}
		s.preludes = append(s.preludes, arg)
	case ":show":
		s.show()
	case ":reset":
		s.inputs = make(map[string]any)
		s.outputs = nil
		s.preludes = nil
	case ":help", ":?":
		s.help()
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(s.output, "Unknown command: %q. Type ':help' for available commands.\n", name)
	}
	return false
}

func (s *Session) send(ctx context.Context, code string) {
	resp, err := s.caller.Call(ctx, code, s.inputs, s.outputs, s.preludes...)
	if err != nil {
		fmt.Fprintf(s.output, "Error: %v\n", err)
		return
	}
	if !resp.Succeeded() {
		fmt.Fprintf(s.output, "  ✗ %s\n", resp.Error)
		return
	}
	if len(s.outputs) == 0 {
		fmt.Fprintf(s.output, "  ✓\n")
		return
	}
	for i, v := range resp.Values(s.outputs...) {
		fmt.Fprintf(s.output, "  %s = %s\n", s.outputs[i], render(v))
	}
}

func (s *Session) show() {
	keys := make([]string, 0, len(s.inputs))
	for k := range s.inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(s.output, "inputs:\n")
	for _, k := range keys {
		fmt.Fprintf(s.output, "  %s = %s\n", k, render(s.inputs[k]))
	}
	fmt.Fprintf(s.output, "outputs: %s\n", strings.Join(s.outputs, ", "))
	fmt.Fprintf(s.output, "preludes: %d\n", len(s.preludes))
}

func (s *Session) help() {
	fmt.Fprintf(s.output, `Commands:
  <code>            Send code to the workbench
  :in name=value    Bind an input variable (value is parsed as YAML)
  :out a,b          Set the variables to read back
  :prelude <code>   Run code before every request
  :show             Show inputs, outputs and preludes
  :reset            Forget inputs, outputs and preludes
  :help             Show this help
  :quit             Leave
`)
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// ParseAssignment splits "name=value" and decodes value as a YAML scalar or
// flow collection, so 42, true, [1, 2] and {a: 1} arrive typed.
func ParseAssignment(s string) (string, any, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("want name=value, got %q", s)
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return "", nil, fmt.Errorf("value of %s: %w", name, err)
	}
	return name, normalize(v), nil
}

// normalize turns yaml's map[string]interface{} and int into the JSON-ready
// shapes the bridge sends.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	case nil:
		return nil
	default:
		return v
	}
}
