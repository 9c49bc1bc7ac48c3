package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"embedkeeper/pkg/logging"
)

// DefaultDebounce is used when New gets a zero interval.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher calls a callback once a file has settled after changes.
//
// It watches the file's directory rather than the file, so editors that save
// by writing a temp file and renaming it over the original are seen too.
type FileWatcher struct {
	mu sync.Mutex

	// path is the cleaned absolute path of the watched file
	path string

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	onChange func()

	watcher *fsnotify.Watcher
	pending *time.Timer
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a watcher for path. onChange runs on its own goroutine, at most
// once per settled burst of changes, and is not started after Stop returns.
func New(path string, debounceInterval time.Duration, onChange func()) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounceInterval <= 0 {
		debounceInterval = DefaultDebounce
	}
	return &FileWatcher{
		path:             filepath.Clean(abs),
		debounceInterval: debounceInterval,
		onChange:         onChange,
	}, nil
}

// Path returns the watched file.
func (w *FileWatcher) Path() string {
	return w.path
}

// Start begins watching. The directory of the file must exist.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.processEvents(ctx, watcher, w.stopCh, w.doneCh)

	logging.Info("Watcher", "Watching %s for changes", w.path)
	return nil
}

func (w *FileWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return

		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "Filesystem watcher error")
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	logging.Debug("Watcher", "Observed %s on %s", event.Op, event.Name)
	w.debounce()
}

// debounce restarts the settle timer.
func (w *FileWatcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		current := w.pending == timer && w.running
		if current {
			w.pending = nil
		}
		w.mu.Unlock()
		if !current {
			return
		}

		if _, err := os.Stat(w.path); errors.Is(err, os.ErrNotExist) {
			logging.Warn("Watcher", "%s was removed; keeping the current state", w.path)
			return
		}
		logging.Info("Watcher", "%s changed", w.path)
		w.onChange()
	})
	w.pending = timer
}

func (w *FileWatcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

// Stop ends watching and cancels a pending callback.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = false
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	close(w.stopCh)
	watcher, doneCh := w.watcher, w.doneCh
	w.watcher = nil
	w.mu.Unlock()

	<-doneCh
	if err := watcher.Close(); err != nil {
		logging.Error("Watcher", err, "Error closing filesystem watcher")
		return err
	}

	logging.Debug("Watcher", "Stopped watching %s", w.path)
	return nil
}
