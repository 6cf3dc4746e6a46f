// Package workbench is the headless editor the test-mode bridge drives. It
// keeps open buffers, runs the structure check on them and records what it
// did in a log area that drivers can read back.
package workbench

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/ormasoftchile/padawan/pkg/checker"
)

// ErrNotOpen is returned for operations on a path without a buffer.
var ErrNotOpen = errors.New("buffer not open")

// Buffer is the in-memory text of one file.
type Buffer struct {
	Path     string
	Text     string
	Modified bool
}

// Workbench holds the editor state. It is not safe for concurrent use; in
// test mode it is only touched from the event loop.
type Workbench struct {
	checker *checker.Checker
	logger  *slog.Logger
	version string

	buffers map[string]*Buffer
	order   []string
	log     []string
}

// Option configures a Workbench.
type Option func(*Workbench)

// WithLogger sets the logger that mirrors the log area.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workbench) { w.logger = l }
}

// WithVersion sets the version reported to drivers.
func WithVersion(v string) Option {
	return func(w *Workbench) { w.version = v }
}

// New returns an empty workbench that checks buffers with c.
func New(c *checker.Checker, opts ...Option) *Workbench {
	w := &Workbench{
		checker: c,
		version: "dev",
		buffers: make(map[string]*Buffer),
	}
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w
}

func (w *Workbench) key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Open reads path into a buffer. Opening an open path reloads it.
func (w *Workbench) Open(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	k := w.key(path)
	if _, ok := w.buffers[k]; !ok {
		w.order = append(w.order, k)
	}
	w.buffers[k] = &Buffer{Path: k, Text: string(data)}
	w.logger.Debug("buffer opened", "path", k, "bytes", len(data))
	return nil
}

// SetText replaces the text of path's buffer, creating the buffer if the
// path is not open yet.
func (w *Workbench) SetText(path, text string) {
	k := w.key(path)
	b, ok := w.buffers[k]
	if !ok {
		b = &Buffer{Path: k}
		w.buffers[k] = b
		w.order = append(w.order, k)
	}
	b.Text = text
	b.Modified = true
}

// Text returns the text of path's buffer.
func (w *Workbench) Text(path string) (string, error) {
	b, ok := w.buffers[w.key(path)]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotOpen)
	}
	return b.Text, nil
}

// Buffer returns path's buffer.
func (w *Workbench) Buffer(path string) (*Buffer, bool) {
	b, ok := w.buffers[w.key(path)]
	return b, ok
}

// Buffers returns the open paths in the order they were opened.
func (w *Workbench) Buffers() []string {
	return slices.Clone(w.order)
}

// Close drops path's buffer without saving it.
func (w *Workbench) Close(path string) error {
	k := w.key(path)
	if _, ok := w.buffers[k]; !ok {
		return fmt.Errorf("%s: %w", path, ErrNotOpen)
	}
	delete(w.buffers, k)
	w.order = slices.DeleteFunc(w.order, func(p string) bool { return p == k })
	return nil
}

// Save checks path's buffer and writes it to disk. The file is written
// whether or not the check passes; the result is returned and logged.
func (w *Workbench) Save(path string) (bool, error) {
	b, ok := w.buffers[w.key(path)]
	if !ok {
		return false, fmt.Errorf("%s: %w", path, ErrNotOpen)
	}
	passed, _ := w.CheckText(b.Path, b.Text)
	if err := os.WriteFile(b.Path, []byte(b.Text), 0o644); err != nil {
		return passed, fmt.Errorf("save %s: %w", b.Path, err)
	}
	b.Modified = false
	w.logger.Debug("buffer saved", "path", b.Path)
	return passed, nil
}

// Check validates path, using its buffer when open and the file on disk
// otherwise.
func (w *Workbench) Check(path string) (bool, string, error) {
	if b, ok := w.buffers[w.key(path)]; ok {
		passed, report := w.CheckText(b.Path, b.Text)
		return passed, report, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, "", fmt.Errorf("check %s: %w", path, err)
	}
	passed, report := w.CheckText(path, string(data))
	return passed, report, nil
}

// CheckText validates text as the content of path and logs the outcome.
func (w *Workbench) CheckText(path, text string) (bool, string) {
	w.appendLog("Checking syntax " + path)
	passed, report := w.checker.Check(path, text)
	if passed {
		w.appendLog("Syntax check successful")
	} else {
		w.appendLog("Syntax check error: " + report)
	}
	return passed, report
}

// Log returns the log area lines.
func (w *Workbench) Log() []string {
	return slices.Clone(w.log)
}

// ClearLog empties the log area.
func (w *Workbench) ClearLog() {
	w.log = nil
}

func (w *Workbench) appendLog(line string) {
	w.log = append(w.log, line)
	w.logger.Info(line)
}

// Version reports the workbench version.
func (w *Workbench) Version() string { return w.version }
