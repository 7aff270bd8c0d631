// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quiet() *log.Logger { return log.New(io.Discard) }

// start runs a watcher on dir and returns the channel of delivered batches.
func start(t *testing.T, dir string, patterns []string) <-chan []string {
	t.Helper()
	batches := make(chan []string, 8)
	w, err := New(Options{
		BaseDir:  dir,
		Patterns: patterns,
		Debounce: 50 * time.Millisecond,
		Logger:   quiet(),
		OnChange: func(_ context.Context, changed []string) { batches <- changed },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return batches
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	batches := start(t, dir, nil)
	for _, name := range []string{"a.jar", "b.jar", "a.jar"} {
		write(t, filepath.Join(dir, name), name)
	}

	select {
	case got := <-batches:
		if !slices.Equal(got, []string{"a.jar", "b.jar"}) {
			t.Errorf("batch = %v, want [a.jar b.jar]", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestWatcher_Patterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "dist"), 0o755); err != nil {
		t.Fatal(err)
	}
	batches := start(t, dir, []string{"dist/*.jar"})
	write(t, filepath.Join(dir, "notes.txt"), "ignored")
	write(t, filepath.Join(dir, "dist", "compiler.jar"), "jar")

	select {
	case got := <-batches:
		if !slices.Equal(got, []string{"dist/compiler.jar"}) {
			t.Errorf("batch = %v, want [dist/compiler.jar]", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := New(Options{BaseDir: t.TempDir(), Patterns: []string{"dist/[.jar"}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("New() error = %v, want ErrInvalidPattern", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Options{BaseDir: t.TempDir(), Logger: quiet()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}
