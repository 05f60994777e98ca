// Package watch notifies the server when its configuration file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when NewFileWatcher is given a zero window.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher reports changes to a single file. It watches the parent
// directory so that editors which replace the file on save are still seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(path string)
}

// NewFileWatcher watches path and calls onChange once per burst of writes.
func NewFileWatcher(path string, debounce time.Duration, onChange func(path string)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{watcher: w, path: abs, debounce: debounce, onChange: onChange}, nil
}

// Path is the absolute path being watched.
func (w *FileWatcher) Path() string { return w.path }

// Run delivers change notifications until ctx is done.
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	d := newDebouncer(w.debounce, func() {
		if w.onChange != nil {
			w.onChange(w.path)
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !relevant(event.Op) {
				continue
			}
			d.trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Rename)
}
