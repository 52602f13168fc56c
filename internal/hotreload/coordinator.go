package hotreload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reloadable represents an interface that can be reloaded
type Reloadable interface {
	Reload(ctx context.Context) error
	Name() string
}

// Coordinator debounces watcher events and reloads every registered
// component once a burst of events has settled.
type Coordinator struct {
	watcher      *Watcher
	reloadables  map[string]Reloadable
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	debounceTime time.Duration
	wg           sync.WaitGroup
	isRunning    bool
	reloads      chan error
}

// NewCoordinator creates a new reload coordinator
func NewCoordinator(watcher *Watcher) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		watcher:      watcher,
		reloadables:  make(map[string]Reloadable),
		ctx:          ctx,
		cancel:       cancel,
		debounceTime: 500 * time.Millisecond,
	}
}

// Register adds a reloadable component to the coordinator
func (c *Coordinator) Register(reloadable Reloadable) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := reloadable.Name()
	if _, exists := c.reloadables[name]; exists {
		return fmt.Errorf("reloadable %s already registered", name)
	}

	c.reloadables[name] = reloadable
	slog.Info("Registered reloadable component", "name", name)
	return nil
}

// Unregister removes a reloadable component from the coordinator
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reloadables, name)
	slog.Info("Unregistered reloadable component", "name", name)
}

// Start begins the hot reload coordination
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already stopped")
	}
	c.isRunning = true
	c.mu.Unlock()

	c.watcher.Start()

	c.wg.Add(1)
	go c.coordinateReloads()

	slog.Info("Hot reload coordinator started")
	return nil
}

// Stop stops the coordination and the watcher. A stopped coordinator cannot
// be restarted.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	c.mu.Unlock()

	c.cancel()
	c.watcher.Stop()
	c.wg.Wait()

	slog.Info("Hot reload coordinator stopped")
}

// coordinateReloads collects events until none has arrived for the debounce
// time, then triggers a single reload for the whole burst.
func (c *Coordinator) coordinateReloads() {
	defer c.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending []Event
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	events := c.watcher.Events()
	for {
		select {
		case <-c.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			pending = append(pending, event)

			debounce := c.getDebounceTime()
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Stop()
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if len(pending) > 0 {
				c.triggerReload(pending)
				pending = pending[:0]
			}
		}
	}
}

// triggerReload reloads every registered component concurrently
func (c *Coordinator) triggerReload(events []Event) {
	c.mu.RLock()
	reloadables := make([]Reloadable, 0, len(c.reloadables))
	for _, r := range c.reloadables {
		reloadables = append(reloadables, r)
	}
	c.mu.RUnlock()

	if len(reloadables) == 0 {
		return
	}

	slog.Info("Triggering hot reload", "events", len(events))
	for _, event := range events {
		slog.Debug("Reload triggered by", "path", event.Path, "operation", event.Op.String())
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(reloadables))

	for _, reloadable := range reloadables {
		wg.Add(1)
		go func(r Reloadable) {
			defer wg.Done()
			if err := r.Reload(c.ctx); err != nil {
				errCh <- fmt.Errorf("failed to reload %s: %w", r.Name(), err)
			} else {
				slog.Info("Successfully reloaded component", "name", r.Name())
			}
		}(reloadable)
	}

	wg.Wait()
	close(errCh)

	var reloadErrors []error
	for err := range errCh {
		slog.Error("Reload error", "error", err)
		reloadErrors = append(reloadErrors, err)
	}

	err := errors.Join(reloadErrors...)
	if err != nil {
		slog.Error("Hot reload completed with errors", "errors", len(reloadErrors))
	} else {
		slog.Info("Hot reload completed successfully")
	}

	c.mu.RLock()
	reloads := c.reloads
	c.mu.RUnlock()
	if reloads != nil {
		select {
		case reloads <- err:
		default:
		}
	}
}

// notifyReloads sends the outcome of every completed reload to ch without
// blocking; used by tests to wait for the debounced reload.
func (c *Coordinator) notifyReloads(ch chan error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloads = ch
}

// SetDebounceTime sets the debounce time for reload events
func (c *Coordinator) SetDebounceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounceTime = d
}

func (c *Coordinator) getDebounceTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debounceTime
}

// IsRunning returns whether the coordinator is currently running
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
