package engine

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads an Engine's policy set whenever its backing file
// changes on disk, debouncing rapid successive writes (editors often emit
// several events for a single save).
type Watcher struct {
	engine *Engine
	path   string

	fsw       *fsnotify.Watcher
	stop      chan struct{}
	stopOnce  sync.Once
	debounce  time.Duration
	onReload  func(err error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides the default 500ms debounce window.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// OnReload registers a callback invoked after every reload attempt,
// successful or not, useful for logging and metrics.
func OnReload(f func(err error)) WatchOption {
	return func(w *Watcher) { w.onReload = f }
}

// Watch starts hot-reloading e's policy set from path whenever the file
// changes, and performs the initial load synchronously before returning.
func Watch(e *Engine, path string, opts ...WatchOption) (*Watcher, error) {
	w := &Watcher{
		engine:   e,
		path:     path,
		stop:     make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := e.LoadFile(path); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				err := w.engine.LoadFile(w.path)
				if w.onReload != nil {
					w.onReload(err)
				}
			})
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.stop:
			return
		}
	}
}

// Close stops watching for file changes. The Engine keeps serving
// whatever policy set was last loaded.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.fsw.Close()
	})
}
