// Package watch reports changes to dictionary source files.
//
// Directories are watched rather than files so that editors and atomic
// writers that replace a file by rename are still seen. Events are
// debounced per file.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/calvinalkan/dictcache/internal/logging"
)

// DefaultDebounce is used when no [WithDebounce] option is given.
const DefaultDebounce = 200 * time.Millisecond

var (
	// ErrAlreadyStarted is returned by a second [Watcher.Start].
	ErrAlreadyStarted = errors.New("watcher already started")

	// ErrNoFiles is returned by [New] without paths.
	ErrNoFiles = errors.New("no files to watch")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before onChange runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOnChange sets the callback invoked with the changed file's path.
func WithOnChange(fn func(path string)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on watcher errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// Watcher monitors a set of files.
type Watcher struct {
	files    map[string]bool // absolute paths
	debounce time.Duration
	onChange func(path string)
	onError  func(error)
	log      logging.Logger

	mu      sync.Mutex
	started bool
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a watcher for paths. Call [Watcher.Start] to begin.
func New(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		debounce: DefaultDebounce,
		onChange: func(string) {},
		onError:  func(error) {},
		log:      logging.Default(),
		timers:   make(map[string]*time.Timer),
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}

		w.files[abs] = true
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. The parent directory of every file must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}

	for dir := range dirs {
		err = fsw.Add(dir)
		if err != nil {
			_ = fsw.Close()

			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go w.loop(ctx, fsw, w.done)

	return nil
}

// Stop ends watching and cancels pending notifications. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()

	if !w.started {
		w.mu.Unlock()

		return
	}

	w.started = false

	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}

	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.mu.Unlock()

	cancel()
	_ = fsw.Close()

	<-done
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			path := filepath.Clean(event.Name)
			if !w.files[path] {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			w.log.WithFields(logging.Fields{"path": path, "op": event.Op.String()}).Debug("source file event")
			w.schedule(path)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}

			w.onError(err)
		}
	}
}

// schedule (re)arms the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		started := w.started
		w.mu.Unlock()

		if started {
			w.onChange(path)
		}
	})
}
