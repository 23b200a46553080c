package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces bursts of file events into one reload.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a configuration file when it changes on disk.
//
// The parent directory is watched rather than the file itself so editors and
// orchestrators that replace the file by rename (including Kubernetes
// ConfigMap symlink swaps) are followed.
type Watcher struct {
	path     string
	debounce time.Duration
	load     func(path string) (*Config, error)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		load:     LoadConfigWithEnvOverrides,
		watcher:  fw,
		logger:   logger.With("component", "config.watcher"),
	}, nil
}

// Watch blocks until ctx is cancelled, calling onChange with every
// configuration that loads and validates after a file change. Invalid
// configurations are logged and skipped.
func (w *Watcher) Watch(ctx context.Context, onChange func(*Config)) error {
	defer w.watcher.Close()

	w.logger.Info("config watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			w.schedule(func() { w.reload(onChange) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return name == filepath.Base(w.path) || name == "..data"
}

func (w *Watcher) schedule(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, fn)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload(onChange func(*Config)) {
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Error("config reload rejected, keeping current configuration", "error", err)
		return
	}
	SetConfig(cfg)
	w.logger.Info("configuration reloaded", "path", w.path)
	onChange(cfg)
}
