// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrInvalidPattern is returned by New for a malformed watch or ignore pattern.
	ErrInvalidPattern = errors.New("invalid watch pattern")

	defaultIgnores = []string{
		"**/.git/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Options configure a Watcher.
	Options struct {
		// BaseDir is the directory tree to watch. Empty means the working
		// directory.
		BaseDir string
		// Patterns select the files whose changes trigger OnChange. Empty
		// selects every file.
		Patterns []string
		// Ignore lists patterns excluded in addition to the defaults.
		Ignore   []string
		Debounce time.Duration
		// OnChange receives the sorted, base-relative paths that changed.
		OnChange func(ctx context.Context, changed []string)
		Logger   *log.Logger
	}

	// Watcher watches one directory tree. It is single-use.
	Watcher struct {
		opts    Options
		fsw     *fsnotify.Watcher
		base    string
		ignores []string
		logger  *log.Logger
	}
)

// New validates opts and registers every directory below BaseDir.
func New(opts Options) (*Watcher, error) {
	for _, p := range slices.Concat(opts.Patterns, opts.Ignore) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	base := opts.BaseDir
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve watch directory: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		opts:    opts,
		fsw:     fsw,
		base:    base,
		ignores: slices.Concat(defaultIgnores, opts.Ignore),
		logger:  logger,
	}
	if err := w.addTree(base); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers batched changes to OnChange until ctx is done. Changes that
// arrive while OnChange runs are delivered in the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing file watcher", "error", err)
		}
	}()

	pending := make(map[string]bool)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			rel, keep := w.relevant(evt)
			if !keep {
				continue
			}
			pending[rel] = true
			timer.Reset(w.opts.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)
			w.logger.Debug("change detected", "files", len(changed))
			if w.opts.OnChange != nil {
				w.opts.OnChange(ctx, changed)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			if exhausted(err) {
				return fmt.Errorf("file watcher: %w", err)
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// relevant reports the base-relative path of evt when it should trigger a
// rerun. New directories are added to the watch as a side effect.
func (w *Watcher) relevant(evt fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.base, evt.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) {
		return "", false
	}
	if evt.Has(fsnotify.Create) {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			if err := w.addTree(evt.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", evt.Name, "error", err)
			}
		}
	}
	if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
		return "", false
	}
	return rel, w.selected(rel)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.base, p)
		if err != nil {
			return nil
		}
		if rel = filepath.ToSlash(rel); rel != "." && w.ignored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) selected(rel string) bool {
	return len(w.opts.Patterns) == 0 || matchAny(w.opts.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// exhausted reports watcher errors caused by kernel resource limits, after
// which events are silently lost.
func exhausted(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
