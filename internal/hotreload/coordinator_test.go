package hotreload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// mockReloadable is a mock implementation of the Reloadable interface for testing.
type mockReloadable struct {
	name        string
	reloadCount atomic.Int32
	reloadFunc  func(ctx context.Context) error
}

func (m *mockReloadable) Reload(ctx context.Context) error {
	m.reloadCount.Add(1)
	if m.reloadFunc != nil {
		return m.reloadFunc(ctx)
	}
	return nil
}

func (m *mockReloadable) Name() string {
	return m.name
}

func (m *mockReloadable) GetReloadCount() int32 {
	return m.reloadCount.Load()
}

func newWatchedFile(t *testing.T, w *Watcher) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "probe.yaml")
	if err := os.WriteFile(file, []byte("app: {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := w.Add(file); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	return file
}

func waitForReload(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for reload")
		return nil
	}
}

func TestNewCoordinator(t *testing.T) {
	w, _ := NewWatcher()
	defer w.Stop()
	c := NewCoordinator(w)
	if c == nil {
		t.Fatal("NewCoordinator returned nil")
	}
	if c.IsRunning() {
		t.Error("Coordinator should not be running initially")
	}
	if c.getDebounceTime() != 500*time.Millisecond {
		t.Errorf("Expected default debounce of 500ms, got %v", c.getDebounceTime())
	}
}

func TestCoordinator_RegisterUnregister(t *testing.T) {
	w, _ := NewWatcher()
	defer w.Stop()
	c := NewCoordinator(w)

	reloadable1 := &mockReloadable{name: "comp1"}

	if err := c.Register(reloadable1); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, ok := c.reloadables["comp1"]; !ok {
		t.Fatal("Component 'comp1' not found after registration")
	}

	if err := c.Register(reloadable1); err == nil {
		t.Fatal("Expected error on duplicate registration, but got nil")
	}

	c.Unregister("comp1")
	if _, ok := c.reloadables["comp1"]; ok {
		t.Fatal("Component 'comp1' found after unregistration")
	}
}

func TestCoordinator_StartStop(t *testing.T) {
	w, _ := NewWatcher()
	c := NewCoordinator(w)

	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !c.IsRunning() {
		t.Error("Coordinator should be running after Start()")
	}
	if err := c.Start(); err == nil {
		t.Error("Expected error when starting a running coordinator")
	}

	c.Stop()
	if c.IsRunning() {
		t.Error("Coordinator should not be running after Stop()")
	}
	c.Stop()

	if err := c.Start(); err == nil {
		t.Error("Expected error when restarting a stopped coordinator")
	}
}

func TestCoordinator_DebouncesBurst(t *testing.T) {
	w, _ := NewWatcher()
	file := newWatchedFile(t, w)

	c := NewCoordinator(w)
	c.SetDebounceTime(150 * time.Millisecond)
	reloads := make(chan error, 4)
	c.notifyReloads(reloads)

	reloadable := &mockReloadable{name: "config"}
	if err := c.Register(reloadable); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(file, []byte("app: {version: burst}"), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := waitForReload(t, reloads); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	// Give a stray second reload a chance to show up
	time.Sleep(300 * time.Millisecond)
	if got := reloadable.GetReloadCount(); got != 1 {
		t.Errorf("Expected one reload for a burst of writes, got %d", got)
	}
}

func TestCoordinator_ReportsReloadErrors(t *testing.T) {
	w, _ := NewWatcher()
	file := newWatchedFile(t, w)

	c := NewCoordinator(w)
	c.SetDebounceTime(20 * time.Millisecond)
	reloads := make(chan error, 4)
	c.notifyReloads(reloads)

	failing := &mockReloadable{
		name:       "failing",
		reloadFunc: func(context.Context) error { return errors.New("invalid configuration") },
	}
	healthy := &mockReloadable{name: "healthy"}
	for _, r := range []Reloadable{failing, healthy} {
		if err := c.Register(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	if err := os.WriteFile(file, []byte("app: {version: broken}"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := waitForReload(t, reloads)
	if err == nil {
		t.Fatal("Expected reload error")
	}
	if healthy.GetReloadCount() != 1 {
		t.Errorf("Expected healthy component to reload despite sibling failure, got %d", healthy.GetReloadCount())
	}
}

func TestCoordinator_StopDuringPendingDebounce(t *testing.T) {
	w, _ := NewWatcher()
	file := newWatchedFile(t, w)

	c := NewCoordinator(w)
	c.SetDebounceTime(time.Hour)
	reloadable := &mockReloadable{name: "config"}
	if err := c.Register(reloadable); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(file, []byte("app: {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked with a pending debounce timer")
	}
	if reloadable.GetReloadCount() != 0 {
		t.Error("No reload should run when stopped before the debounce elapsed")
	}
}
