package jurisdiction

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the store when jurisdiction files change on disk.
// Events are debounced so an editor save burst triggers one reload.
type Watcher struct {
	dir    string
	store  *Store
	logger *slog.Logger
	fw     *fsnotify.Watcher
}

// NewWatcher starts watching dir for changes.
func NewWatcher(dir string, store *Store, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{dir: dir, store: store, logger: logger, fw: fw}, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				fire = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("jurisdiction watcher error", "error", err)
		case <-fire:
			timer = nil
			fire = nil
			w.reload()
		}
	}
}

// reload attempts to load and install the directory. On failure the
// previous snapshot stays active.
func (w *Watcher) reload() {
	rules, err := LoadDir(w.dir)
	if err != nil {
		w.logger.Error("jurisdiction reload failed, keeping previous rules",
			"dir", w.dir, "error", err)
		return
	}
	if err := w.store.Replace(rules); err != nil {
		w.logger.Error("jurisdiction reload failed, keeping previous rules",
			"dir", w.dir, "error", err)
		return
	}
	w.logger.Info("jurisdiction rules reloaded", "version", w.store.Version())
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
