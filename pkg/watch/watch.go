// Package watch monitors a run config file and re-runs a callback
// whenever writes to it settle.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebugLog is an optional debug logger.
var DebugLog func(format string, args ...interface{})

func debugf(format string, args ...interface{}) {
	if DebugLog != nil {
		DebugLog(format, args...)
	}
}

// Watcher observes a single file for changes. It watches the parent
// directory rather than the file itself because most editors replace
// files atomically via rename, which drops a watch on the inode.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	dir         string
	onChange    func(path string)
	debounceDur time.Duration
	pending     map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// New creates a watcher for path. onChange is invoked with the watched
// path after a burst of writes settles.
func New(path string, onChange func(path string)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher:     fsw,
		path:        abs,
		dir:         filepath.Dir(abs),
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond,
		pending:     make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a
// goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	debugf("watch: watching %s for changes to %s", w.dir, filepath.Base(w.path))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		debugf("watch: error closing watcher: %v", err)
	}
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debugf("watch: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debugf("watch: error: %v", err)

		case <-ticker.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	debugf("watch: %s %s", event.Op, event.Name)

	w.mu.Lock()
	w.pending[w.path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.onChange(path)
	}
}
