// Package hotreload watches configuration files and asks registered
// components to reload after the files settle.
package hotreload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to individual files. It watches each file's parent
// directory so that editors which replace files by rename keep triggering
// events.
type Watcher struct {
	watcher    *fsnotify.Watcher
	files      map[string]struct{}
	dirs       map[string]int
	events     chan Event
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	isWatching bool
	closeOnce  sync.Once
}

// Event represents a change to a watched file
type Event struct {
	Path string
	Op   fsnotify.Op
}

// relevantOps are the operations that can change a file's contents
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// NewWatcher creates a new file watcher
func NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		watcher: fsWatcher,
		files:   make(map[string]struct{}),
		dirs:    make(map[string]int),
		events:  make(chan Event, 100),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add starts watching the file at path
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, ok := w.files[absPath]; ok {
		return nil
	}

	dir := filepath.Dir(absPath)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add path %s: %w", dir, err)
		}
	}

	w.dirs[dir]++
	w.files[absPath] = struct{}{}
	slog.Debug("Added watch path", "path", absPath)
	return nil
}

// Remove stops watching the file at path
func (w *Watcher) Remove(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, ok := w.files[absPath]; !ok {
		return fmt.Errorf("path %s is not watched", absPath)
	}

	delete(w.files, absPath)
	dir := filepath.Dir(absPath)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove path %s: %w", dir, err)
		}
	}

	slog.Debug("Removed watch path", "path", absPath)
	return nil
}

// Events returns the channel for file events. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching for file system events
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		return
	}
	w.isWatching = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watch()
	slog.Info("File watcher started")
}

// Stop stops watching and releases the underlying watcher. It is safe to
// call on a watcher that was never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasWatching := w.isWatching
	w.isWatching = false
	w.mu.Unlock()

	w.closeOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
		close(w.events)
		if err := w.watcher.Close(); err != nil {
			slog.Error("Failed to close file watcher", "error", err)
		}
		if wasWatching {
			slog.Info("File watcher stopped")
		}
	})
}

// watch is the main event loop for the watcher
func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isRelevant(event) {
				continue
			}

			slog.Debug("File system event", "path", event.Name, "operation", event.Op.String())

			select {
			case w.events <- Event{Path: filepath.Clean(event.Name), Op: event.Op}:
			case <-w.ctx.Done():
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Watcher error", "error", err)
		}
	}
}

// isRelevant keeps content-changing events on watched files and drops
// editor swap and backup files.
func (w *Watcher) isRelevant(event fsnotify.Event) bool {
	if event.Op&relevantOps == 0 {
		return false
	}
	if shouldSkipEvent(event.Name) {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

// shouldSkipEvent determines if an event should be skipped
func shouldSkipEvent(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(path)
	return ext == ".tmp" || ext == ".swp" ||
		strings.HasPrefix(base, ".") ||
		strings.HasPrefix(base, "~") ||
		strings.HasSuffix(base, "~")
}

// IsWatching returns whether the watcher is currently active
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isWatching
}
