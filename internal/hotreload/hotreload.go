package hotreload

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager ties a Watcher and a Coordinator together
type Manager struct {
	watcher     *Watcher
	coordinator *Coordinator
	mu          sync.Mutex
	started     bool
}

// NewManager creates a new hot reload manager
func NewManager() (*Manager, error) {
	watcher, err := NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Manager{
		watcher:     watcher,
		coordinator: NewCoordinator(watcher),
	}, nil
}

// AddWatch adds a file to watch
func (m *Manager) AddWatch(path string) error {
	return m.watcher.Add(path)
}

// RemoveWatch removes a file from watch
func (m *Manager) RemoveWatch(path string) error {
	return m.watcher.Remove(path)
}

// RegisterReloadable registers a reloadable component
func (m *Manager) RegisterReloadable(reloadable Reloadable) error {
	return m.coordinator.Register(reloadable)
}

// Start starts the hot reload system
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if err := m.coordinator.Start(); err != nil {
		return err
	}

	m.started = true
	slog.Info("Hot reload system started")
	return nil
}

// Stop stops the hot reload system and releases the watcher
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		m.watcher.Stop()
		return
	}

	m.coordinator.Stop()
	m.started = false
	slog.Info("Hot reload system stopped")
}

// SetDebounceTime sets the debounce time for reload events
func (m *Manager) SetDebounceTime(d time.Duration) {
	m.coordinator.SetDebounceTime(d)
}

// IsRunning returns whether the hot reload system is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Shutdown stops the system, giving up when ctx is done first
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
