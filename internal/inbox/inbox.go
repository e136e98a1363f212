// Package inbox watches a directory for snapshot files and hands each one to
// a handler, one at a time. Handled files move to done/ or failed/.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"boardsnap/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Subdirectories receiving handled files.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// Handler processes one snapshot file.
type Handler func(ctx context.Context, path string) error

// Stats tracks watcher activity.
type Stats struct {
	Handled int
	Failed  int
	Errors  int
}

// Watcher feeds new .json files in a directory to a Handler.
type Watcher struct {
	dir      string
	handle   Handler
	debounce time.Duration
	pending  map[string]time.Time
	stats    Stats
	log      *logging.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a Watcher for dir.
func New(dir string, h Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		handle:   h,
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]time.Time),
		log:      logging.Get(logging.CategoryStore),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Stats returns the counters. Only call it after Run returned.
func (w *Watcher) Stats() Stats { return w.stats }

// Run watches until ctx is done. Files already in the directory are queued
// first.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0755); err != nil {
			return fmt.Errorf("failed to create inbox: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching %s for snapshots", w.dir)

	if err := w.queueExisting(); err != nil {
		return err
	}

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.stats.Errors++
			w.log.Error("inbox watcher error: %v", err)

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) queueExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && isSnapshot(e.Name()) {
			w.pending[filepath.Join(w.dir, e.Name())] = time.Time{}
		}
	}
	return nil
}

func isSnapshot(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json") && !strings.HasPrefix(name, ".")
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !isSnapshot(filepath.Base(event.Name)) {
		return
	}
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.log.Debug("inbox: %s %s", event.Op, event.Name)
		w.pending[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(w.pending, event.Name)
	}
}

// processSettled handles files that have been quiet for the debounce
// period, oldest name first.
func (w *Watcher) processSettled(ctx context.Context) {
	now := time.Now()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		delete(w.pending, path)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		dest := DoneDir
		if err := w.handle(ctx, path); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.stats.Failed++
			dest = FailedDir
			w.log.Error("inbox: %s failed: %v", filepath.Base(path), err)
		} else {
			w.stats.Handled++
		}
		if err := os.Rename(path, filepath.Join(w.dir, dest, filepath.Base(path))); err != nil {
			w.stats.Errors++
			w.log.Warn("inbox: move %s to %s: %v", path, dest, err)
		}
	}
}
