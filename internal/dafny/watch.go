package dafny

// watch.go - re-syncs open documents when they change on disk.

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the directories of open documents and calls SyncDoc for
// writes to them once the debounce window passes without further writes.
type Watcher struct {
	sm       *StateManager
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	dirs map[string]int // watched directory -> open documents in it
}

func NewWatcher(sm *StateManager, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		sm:       sm,
		fs:       fsw,
		debounce: debounce,
		logger:   logger,
		dirs:     make(map[string]int),
	}, nil
}

// Add starts watching the directory holding path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	return nil
}

// Remove drops the watch taken by Add once no open document needs it.
func (w *Watcher) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] == 0 {
		return
	}
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		if err := w.fs.Remove(dir); err != nil {
			w.logger.Debug("unwatch", slog.String("dir", dir), slog.Any("error", err))
		}
	}
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		for path := range pending {
			if !w.sm.IsOpen(path) {
				continue
			}
			if err := w.sm.SyncDoc(path); err != nil {
				w.logger.Warn("auto sync", slog.String("path", path), slog.Any("error", err))
				continue
			}
			w.logger.Debug("auto synced", slog.String("path", path))
		}
		clear(pending)
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			// Editors that save atomically produce a create, not a write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher", slog.Any("error", err))
		case <-timerC:
			flush()
		}
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
