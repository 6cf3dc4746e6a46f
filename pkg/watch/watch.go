// Package watch re-checks test documents and fragment files as they change
// on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ormasoftchile/padawan/pkg/checker"
)

// DefaultDebounce is how long a file has to stay quiet before it is checked.
const DefaultDebounce = 200 * time.Millisecond

// Result is the outcome of one check.
type Result struct {
	Path   string
	Passed bool
	Report string
	Err    error // the file could not be read
}

// Watcher checks files under its roots after they are written or created.
type Watcher struct {
	checker  *checker.Checker
	handler  func(Result)
	debounce time.Duration
	logger   *slog.Logger

	dirs  map[string]bool // watched directories; true when every file counts
	files map[string]bool // individually watched files
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New prepares a watcher over paths, which may be files or directories.
// Files are watched through their directory so that editors replacing a
// file by rename are still seen.
func New(c *checker.Checker, paths []string, handler func(Result), opts ...Option) (*Watcher, error) {
	w := &Watcher{
		checker:  c,
		handler:  handler,
		debounce: DefaultDebounce,
		dirs:     make(map[string]bool),
		files:    make(map[string]bool),
	}
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		fi, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if fi.IsDir() {
			w.dirs[abs] = true
			continue
		}
		w.files[abs] = true
		if _, ok := w.dirs[filepath.Dir(abs)]; !ok {
			w.dirs[filepath.Dir(abs)] = false
		}
	}
	return w, nil
}

// Wants reports whether a change to path should trigger a check.
func (w *Watcher) Wants(path string) bool {
	if checker.Classify(path) == checker.KindUnchecked {
		return false
	}
	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)]
}

// CheckFile checks path as it is on disk.
func (w *Watcher) CheckFile(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	passed, report := w.checker.Check(path, string(data))
	return Result{Path: path, Passed: passed, Report: report}
}

// Run checks the individually named files once, then watches until ctx is
// cancelled. Results are delivered on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	initial := make([]string, 0, len(w.files))
	for f := range w.files {
		initial = append(initial, f)
	}
	sort.Strings(initial)
	for _, f := range initial {
		w.handler(w.CheckFile(f))
	}

	ready := make(map[string]bool)
	flush := func() {
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		clear(ready)
		sort.Strings(batch)
		for _, p := range batch {
			if _, err := os.Stat(p); err != nil {
				continue // removed again before it settled
			}
			w.handler(w.CheckFile(p))
		}
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			flush()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.Wants(event.Name) {
				continue
			}
			w.logger.Debug("change", "path", event.Name, "op", event.Op.String())
			ready[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
