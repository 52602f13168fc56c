package hotreload

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, w *Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case event, ok := <-w.Events():
		return event, ok
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestWatcher_AddRemove(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	file := filepath.Join(dir, "probe.yaml")
	if err := os.WriteFile(file, []byte("app: {}"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := w.Add(file); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := w.Add(file); err != nil {
		t.Fatalf("Add() of an already watched file failed: %v", err)
	}
	if w.dirs[dir] != 1 {
		t.Errorf("Expected parent directory to be watched once, got %d", w.dirs[dir])
	}

	if err := w.Remove(file); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, ok := w.dirs[dir]; ok {
		t.Error("Parent directory should no longer be watched")
	}
	if err := w.Remove(file); err == nil {
		t.Error("Expected error removing a file that is not watched")
	}
}

func TestWatcher_AddMissingDirectory(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	if err := w.Add(filepath.Join(t.TempDir(), "missing", "probe.yaml")); err == nil {
		t.Error("Expected error watching a file in a missing directory")
	}
}

func TestWatcher_ReportsWatchedFileOnly(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	file := filepath.Join(dir, "probe.yaml")
	if err := os.WriteFile(file, []byte("app: {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := w.Add(file); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()
	if !w.IsWatching() {
		t.Fatal("Watcher should be watching after Start()")
	}

	// Sibling files share the directory watch but must not be reported
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("app: {version: 2.0.0}"), 0o600); err != nil {
		t.Fatal(err)
	}

	event, ok := waitForEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("Timed out waiting for event on watched file")
	}
	if event.Path != file {
		t.Errorf("Expected event for %s, got %s", file, event.Path)
	}
}

func TestWatcher_ReplaceByRename(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	file := filepath.Join(dir, "probe.yaml")
	if err := os.WriteFile(file, []byte("app: {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := w.Add(file); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	w.Start()

	staged := filepath.Join(dir, "probe.yaml.new")
	if err := os.WriteFile(staged, []byte("app: {version: 3.0.0}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(staged, file); err != nil {
		t.Fatal(err)
	}

	event, ok := waitForEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("Timed out waiting for event after atomic replace")
	}
	if event.Path != file {
		t.Errorf("Expected event for %s, got %s", file, event.Path)
	}
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.Start()
	w.Stop()
	w.Stop()

	if w.IsWatching() {
		t.Error("Watcher should not be watching after Stop()")
	}
	if _, ok := <-w.Events(); ok {
		t.Error("Events channel should be closed after Stop()")
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.Stop()

	if _, ok := <-w.Events(); ok {
		t.Error("Events channel should be closed after Stop()")
	}
}

func TestShouldSkipEvent(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/etc/probe/probe.yaml", false},
		{"/etc/probe/probe.json", false},
		{"/etc/probe/.probe.yaml.swp", true},
		{"/etc/probe/probe.yaml.swp", true},
		{"/etc/probe/probe.yaml.tmp", true},
		{"/etc/probe/probe.yaml~", true},
		{"/etc/probe/~probe.yaml", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := shouldSkipEvent(tt.path); got != tt.want {
				t.Errorf("shouldSkipEvent(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
