package engineconfig

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on write and hands the new value to OnChange.
// Modeled on cmd/bd/list.go's watchIssues debounce loop: fsnotify events are
// bursty (editors write-then-rename-then-chmod), so reloads are debounced
// rather than applied on every event.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	OnChange func(Config)
}

// NewWatcher constructs a Watcher for path. debounce <= 0 uses 250ms.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger, onChange func(Config)) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{path: path, debounce: debounce, logger: logger, OnChange: onChange}
}

// Run blocks until ctx is canceled, reloading and invoking OnChange each
// time path is written. Load errors are logged, not propagated: a bad edit
// to the config file shouldn't take down a running engine's current config.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.path); err != nil {
		return err
	}

	var timer *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Warn("config reload failed, keeping prior config", "path", w.path, "error", err)
			return
		}
		w.logger.Info("config reloaded", "path", w.path)
		if w.OnChange != nil {
			w.OnChange(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
