package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/snaplock/pkg/observability"
)

// BundleWatcher watches a bundle file and invokes a callback once
// changes settle. The parent directory is watched rather than the file
// itself, so atomic replaces (editors and config mounts rename a new
// file over the old one) keep being observed.
type BundleWatcher struct {
	path     string
	debounce time.Duration
	log      *observability.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewBundleWatcher creates a watcher for the bundle file at path. A
// non-positive debounce falls back to 500ms.
func NewBundleWatcher(path string, debounce time.Duration, log *observability.Logger) *BundleWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &BundleWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		log:      log,
	}
}

// Watch blocks processing filesystem events until ctx is cancelled.
// onChange runs after events for the bundle file have settled for the
// debounce interval; a burst of writes triggers it once. onChange is
// responsible for its own error handling, a failed reload must leave
// the previous policy active.
func (w *BundleWatcher) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.log.WithFields(map[string]interface{}{
		"path":     w.path,
		"debounce": w.debounce.String(),
	}).Info("bundle watcher started")

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			w.log.Info("bundle watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.log.WithFields(map[string]interface{}{
				"path": event.Name,
				"op":   event.Op.String(),
			}).Debug("bundle change detected")
			w.schedule(onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.log.WithError(err).Warn("bundle watcher error")
		}
	}
}

// relevant filters directory events down to ones touching the bundle
// file. Chmod alone never changes content.
func (w *BundleWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// schedule arms the debounce timer, restarting it when already armed.
func (w *BundleWatcher) schedule(onChange func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, onChange)
}

func (w *BundleWatcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
