// ABOUTME: Watches the active server list and reports settled changes
// ABOUTME: Watches the parent directory so editor rename-and-replace saves are seen

// Package watch notifies the gateway when the active config source changes on disk.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long events must settle before OnChange runs.
const DefaultDebounce = 500 * time.Millisecond

// Config holds the settings for a Watcher.
type Config struct {
	Logger   *slog.Logger
	Debounce time.Duration
	// OnChange runs on the watcher goroutine after the target settles.
	OnChange func(ctx context.Context, path string)
}

// Watcher follows one file at a time.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	onChange func(ctx context.Context, path string)

	mu     sync.Mutex
	target string
	dir    string

	doneCh chan struct{}
}

// New creates a Watcher. Run must be called to deliver events.
func New(cfg Config) (*Watcher, error) {
	if cfg.OnChange == nil {
		return nil, errors.New("on change callback is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fw,
		logger:   logger,
		debounce: debounce,
		onChange: cfg.OnChange,
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch retargets the watcher to path. An empty path stops watching.
func (w *Watcher) Watch(path string) error {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if path == w.target {
		return nil
	}

	dir := ""
	if path != "" {
		dir = filepath.Dir(path)
	}
	if dir != w.dir {
		if w.dir != "" {
			if err := w.watcher.Remove(w.dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
				w.logger.Debug("removing watch", "dir", w.dir, "error", err)
			}
		}
		if dir != "" {
			if err := w.watcher.Add(dir); err != nil {
				w.target, w.dir = "", ""
				return err
			}
		}
	}

	w.target, w.dir = path, dir
	if path != "" {
		w.logger.Info("watching config source", "path", path)
	}
	return nil
}

// Target returns the file currently watched.
func (w *Watcher) Target() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

// Run delivers debounced changes until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending string

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config source event", "path", event.Name, "op", event.Op.String())
			pending = w.Target()
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)

		case <-timer.C:
			if pending == "" || pending != w.Target() {
				pending = ""
				continue
			}
			path := pending
			pending = ""
			w.logger.Info("config source changed", "path", path)
			w.onChange(ctx, path)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	target := w.Target()
	return target != "" && filepath.Clean(event.Name) == target
}

// Close stops the watcher. Run returns once its event channels drain.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }
