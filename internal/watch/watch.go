// Package watch reports changes to individual working-tree files.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher follows a set of files by watching their parent directories.
// onChange receives the absolute path of a watched file after it is
// written, created, removed or renamed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	onChange func(path string)

	mu    sync.Mutex
	files map[string]int // refcount per file
	dirs  map[string]int // refcount per directory

	done chan struct{}
}

func New(logger *zap.Logger, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		onChange: onChange,
		files:    make(map[string]int),
		dirs:     make(map[string]int),
		done:     make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := filepath.Clean(event.Name)
	w.mu.Lock()
	_, watched := w.files[path]
	w.mu.Unlock()

	if watched && w.onChange != nil {
		w.onChange(path)
	}
}

// Add starts following path. Adding the same path twice needs two Removes.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs]++
	return nil
}

func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[abs] == 0 {
		return nil
	}
	if w.files[abs]--; w.files[abs] == 0 {
		delete(w.files, abs)
	}
	if w.dirs[dir]--; w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			w.logger.Debug("unwatch failed", zap.String("dir", dir), zap.Error(err))
		}
	}
	return nil
}

// Watching reports whether path is currently followed
func (w *Watcher) Watching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[abs] > 0
}

func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
