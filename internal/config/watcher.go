package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// ReloadFunc receives every configuration that loaded and validated.
type ReloadFunc func(*Config)

// ErrorFunc receives reload failures. The previous configuration stays
// active after a failure.
type ErrorFunc func(error)

// CheckFunc applies extra validation, such as building a router from the
// configuration, before a reload is accepted.
type CheckFunc func(*Config) error

// Watcher reloads a configuration file when it changes.
type Watcher struct {
	path          string
	fs            *fsnotify.Watcher
	onReload      ReloadFunc
	onError       ErrorFunc
	check         CheckFunc
	logger        observability.Logger
	debounceDelay time.Duration

	mu       sync.RWMutex
	current  *Config
	running  bool
	reloads  int
	stopCh   chan struct{}
	doneCh   chan struct{}
	reloadMu sync.Mutex
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay coalesces events arriving within delay into one reload.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorFunc sets the reload failure callback.
func WithErrorFunc(fn ErrorFunc) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithCheck adds validation run after ValidateConfig.
func WithCheck(fn CheckFunc) WatcherOption {
	return func(w *Watcher) {
		w.check = fn
	}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		path:          absPath,
		fs:            fsWatcher,
		onReload:      onReload,
		logger:        observability.NopLogger(),
		debounceDelay: 200 * time.Millisecond,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the configuration and begins watching. The file's directory
// is watched so that editors replacing the file are noticed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	cfg, err := w.load()
	if err != nil {
		return err
	}

	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.current = cfg
	w.running = true
	w.mu.Unlock()

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
	)

	go w.loop(ctx)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.fs.Close()
}

// Current returns the active configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reloads returns the number of accepted reloads.
func (w *Watcher) Reloads() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reloads
}

// Reload loads the file immediately.
func (w *Watcher) Reload() error {
	return w.reload()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounceDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("config watcher stopped", observability.String("reason", "context done"))
			return

		case <-w.stopCh:
			w.logger.Debug("config watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.logger.Debug("config file changed",
					observability.String("path", event.Name),
					observability.String("op", event.Op.String()),
				)
				timer.Reset(w.debounceDelay)
			}

		case <-timer.C:
			_ = w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.fail("config watcher error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) load() (*Config, error) {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if w.check != nil {
		if err := w.check(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (w *Watcher) reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, err := w.load()
	if err != nil {
		w.fail("configuration reload rejected", err)
		return err
	}

	w.mu.Lock()
	w.current = cfg
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("configuration reloaded",
		observability.String("path", w.path),
		observability.Int("routes", len(cfg.Routes)),
	)

	if w.onReload != nil {
		w.onReload(cfg)
	}
	return nil
}

func (w *Watcher) fail(msg string, err error) {
	w.logger.Error(msg, observability.Error(err))
	if w.onError != nil {
		w.onError(err)
	}
}
