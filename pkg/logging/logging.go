// Package logging sets up the structured loggers shared by padawan's
// components. Every component logger carries a "subsystem" attribute.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes Level satisfy fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// SlogLevel maps l onto slog's levels.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
// The empty string means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// New returns a text logger writing records at or above level to w.
func New(level Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.SlogLevel()}))
}

// Init builds the process logger and makes it slog's default.
func Init(level Level, w io.Writer) *slog.Logger {
	l := New(level, w)
	slog.SetDefault(l)
	return l
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// For returns l scoped to subsystem. A nil l yields a discard logger.
func For(l *slog.Logger, subsystem string) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l.With("subsystem", subsystem)
}

// Entry is one captured record.
type Entry struct {
	Level     slog.Level
	Subsystem string
	Message   string
}

// Capture is an slog.Handler that keeps records in memory, for showing
// them in a log pane or asserting on them in tests.
type Capture struct {
	level slog.Leveler
	attrs []slog.Attr

	mu      *sync.Mutex
	entries *[]Entry
}

// NewCapture returns a handler recording entries at or above level.
func NewCapture(level Level) *Capture {
	return &Capture{level: level.SlogLevel(), mu: new(sync.Mutex), entries: new([]Entry)}
}

func (c *Capture) Enabled(_ context.Context, l slog.Level) bool {
	return l >= c.level.Level()
}

func (c *Capture) Handle(_ context.Context, r slog.Record) error {
	e := Entry{Level: r.Level, Message: r.Message}
	for _, a := range c.attrs {
		if a.Key == "subsystem" {
			e.Subsystem = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "subsystem" {
			e.Subsystem = a.Value.String()
		}
		return true
	})
	c.mu.Lock()
	*c.entries = append(*c.entries, e)
	c.mu.Unlock()
	return nil
}

func (c *Capture) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *c
	cp.attrs = append(append([]slog.Attr(nil), c.attrs...), attrs...)
	return &cp
}

// WithGroup ignores the group; captured entries are flat.
func (c *Capture) WithGroup(string) slog.Handler { return c }

// Entries returns a copy of everything captured so far.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), *c.entries...)
}

// Messages returns the captured messages in order.
func (c *Capture) Messages() []string {
	entries := c.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
