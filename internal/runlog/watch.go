package runlog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Change is emitted whenever the log file is created, written, or removed.
type Change struct {
	Path    string
	Removed bool
}

// Watcher notifies about changes to one log file. The parent directory is
// watched because the run script deletes and recreates the file.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	path    string
	changes chan Change
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	logger  *zap.Logger
}

// NewWatcher prepares a watcher for path on the host filesystem.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("runlog: create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher: w,
		path:    filepath.Clean(path),
		changes: make(chan Change, 16),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  logger,
	}, nil
}

// Changes delivers change notifications. Notifications are dropped while the
// channel is full, so a reader should re-read the whole file on each one.
// The channel is closed once the watch loop ends.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("runlog: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.running = true
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.changes)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			var change Change
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				change = Change{Path: w.path}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				change = Change{Path: w.path, Removed: true}
			default:
				continue
			}
			select {
			case w.changes <- change:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("run log watcher error", zap.String("path", w.path), zap.Error(err))
		}
	}
}
