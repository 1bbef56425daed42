package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/substrate"
	"github.com/GoCodeAlone/substrate/eventbus"
)

// TopicConfigChanged is the bus topic for configuration change events.
const TopicConfigChanged = "config.changed"

// ChangePayload is the payload of config.changed events.
type ChangePayload struct {
	// Path of the watched config file.
	Path string `json:"path"`
	// Previous is the configuration before the reload.
	Previous *Config `json:"previous"`
	// Current is the configuration after the reload.
	Current *Config `json:"current"`
}

// Watcher monitors a config file and publishes config.changed events on
// the bus when it is rewritten. A reload that fails to parse or validate
// is reported through the observer channel and logger; the last good
// configuration is retained.
type Watcher struct {
	*substrate.ObserverRegistry

	path      string
	envPrefix string
	bus       *eventbus.Bus
	logger    substrate.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.RWMutex
	current *Config
	started bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the structured logger.
func WithWatcherLogger(logger substrate.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithEnvPrefix sets the environment variable prefix applied on each
// reload.
func WithEnvPrefix(prefix string) WatcherOption {
	return func(w *Watcher) {
		w.envPrefix = prefix
	}
}

// NewWatcher creates a watcher for the config file at path, publishing
// change events on bus. The initial load must succeed.
func NewWatcher(path string, bus *eventbus.Bus, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path: path,
		bus:  bus,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = substrate.NewSlogLogger(nil)
	}
	w.ObserverRegistry = substrate.NewObserverRegistry(w.logger)

	initial, err := Load(path, w.envPrefix)
	if err != nil {
		return nil, fmt.Errorf("initial config load failed: %w", err)
	}
	w.current = initial

	return w, nil
}

// Current returns the most recently loaded valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching the config file. The containing directory is
// watched so editor save strategies that replace the file are still
// observed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.watch(context.WithoutCancel(ctx))

	w.logger.Info("Config watcher started", "path", w.path)
	return nil
}

// Stop stops watching. Idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "path", w.path, "error", err)
		}
	}
}

// reload re-reads the config file and publishes a change event. A failed
// reload keeps the last good configuration.
func (w *Watcher) reload(ctx context.Context) {
	next, err := Load(w.path, w.envPrefix)
	if err != nil {
		w.logger.Error("Config reload failed", "path", w.path, "error", err)
		_ = w.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeConfigReloadFailed, "config", map[string]interface{}{
			"path":  w.path,
			"error": err.Error(),
		}, nil))
		return
	}

	w.mu.Lock()
	previous := w.current
	w.current = next
	w.mu.Unlock()

	w.logger.Info("Config reloaded", "path", w.path)
	_ = w.NotifyObservers(ctx, substrate.NewCloudEvent(substrate.EventTypeConfigReloaded, "config", map[string]interface{}{
		"path": w.path,
	}, nil))

	if w.bus != nil {
		err := w.bus.Publish(ctx, eventbus.Event{
			Topic:   TopicConfigChanged,
			Payload: ChangePayload{Path: w.path, Previous: previous, Current: next},
		})
		if err != nil {
			w.logger.Error("Failed to publish config change event", "path", w.path, "error", err)
		}
	}
}
