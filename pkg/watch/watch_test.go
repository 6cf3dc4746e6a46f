package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ormasoftchile/padawan/pkg/checker"
)

func TestWants(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	single := filepath.Join(other, "one.jedi")
	if err := os.WriteFile(single, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New(checker.New(), []string{dir, single}, func(Result) {})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "a.jedi"), true},
		{filepath.Join(dir, "b.star"), true},
		{filepath.Join(dir, "c.txt"), false},
		{single, true},
		{filepath.Join(other, "two.jedi"), false},
	}
	for _, tt := range tests {
		if got := w.Wants(tt.path); got != tt.want {
			t.Errorf("Wants(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNewMissingPath(t *testing.T) {
	if _, err := New(checker.New(), []string{filepath.Join(t.TempDir(), "gone")}, func(Result) {}); err == nil {
		t.Error("New accepted a missing path")
	}
}

func TestRunRechecksOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.star")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := make(chan Result, 8)
	w, err := New(checker.New(), []string{path}, func(r Result) { results <- r }, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	next := func() Result {
		t.Helper()
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a check result")
			return Result{}
		}
	}

	first := next()
	if !first.Passed || first.Err != nil {
		t.Fatalf("initial check = %+v", first)
	}

	if err := os.WriteFile(path, []byte("def f(:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := next()
	if second.Passed || second.Report == "" {
		t.Fatalf("check after write = %+v", second)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
