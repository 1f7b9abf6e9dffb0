package overrides

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the store cache when the backing override document
// changes on disk, so edits made by another process (or an operator with
// an editor) take effect without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	path    string
}

// NewWatcher creates a file watcher for the override document. The file
// may not exist yet; in that case the parent directory is watched so the
// first write is still observed.
func NewWatcher(store *Store, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("overrides: create watcher: %w", err)
	}

	target := path
	if _, err := os.Stat(path); err != nil {
		target = filepath.Dir(path)
	}
	if err := fw.Add(target); err != nil {
		fw.Close()
		return nil, fmt.Errorf("overrides: watch %q: %w", target, err)
	}

	return &Watcher{watcher: fw, store: store, path: path}, nil
}

// Run blocks until ctx is cancelled, dropping the store cache after each
// burst of writes settles.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Debounce: wait 500ms after last write before invalidating
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					w.store.Invalidate()
					fmt.Fprintf(os.Stderr, "overrides: store reloaded after external change\n")
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "overrides: watcher error: %v\n", err)
		}
	}
}
