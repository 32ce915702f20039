// Package watcher reports debounced batches of changed module sources.
package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"scriptlib/internal/core/layout"
	"scriptlib/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
)

type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	walker    *layout.Walker
	onChange  func([]string)

	callbackMu sync.Mutex

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer

	hashes   map[string][sha256.Size]byte
	hashesMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher filters events through walker: excluded directories are never
// watched and only module sources are reported.
func NewWatcher(debounce time.Duration, walker *layout.Walker, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || walker == nil {
		return nil, os.ErrInvalid
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		walker:    walker,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
		hashes:    make(map[string][sha256.Size]byte),
		done:      make(chan struct{}),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch registers every directory below paths and starts the event loop.
// Existing sources are hashed first so that a later write leaving the
// content unchanged is not reported.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
		w.walkSources(path, func(file string) { w.changedContent(file) })
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && w.walker.ExcludedDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.walker.ExcludedDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.walkSources(event.Name, w.scheduleChange)
						}
					}
					continue
				}
			}

			if !w.walker.IsModuleSource(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		if w.changedContent(path) {
			paths = append(paths, path)
		}
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// changedContent records the current hash of path and reports whether it
// differs from the last one seen. A file that can no longer be read counts
// as changed, since it was removed or renamed away.
func (w *Watcher) changedContent(path string) bool {
	data, err := os.ReadFile(path)

	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()
	if err != nil {
		delete(w.hashes, path)
		return true
	}
	sum := sha256.Sum256(data)
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) walkSources(root string, fn func(string)) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.IsDir() {
			if path != root && w.walker.ExcludedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.walker.IsModuleSource(path) {
			fn(path)
		}
		return nil
	})
}
