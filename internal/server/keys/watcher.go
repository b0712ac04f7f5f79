package keys

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher rotates a Ring whenever the key file changes on disk.
type Watcher struct {
	path     string
	ring     *Ring
	logger   logging.Logger
	debounce time.Duration
	// rotated is called after every successful rotation; tests hook it.
	rotated func(kid string)
}

func NewWatcher(path string, ring *Ring, logger logging.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		ring:     ring,
		logger:   logger.With("module", "keywatcher"),
		debounce: defaultDebounce,
		rotated:  func(string) {},
	}
}

// Run watches the key file's directory until ctx is done. Editors and
// atomic renames replace the file, so the directory is watched rather than
// the file itself.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Info(ctx, "watching signing key", "path", w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Reset(w.debounce)
			} else {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}

		case <-fire:
			timer, fire = nil, nil
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(ctx, "key watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	key, err := LoadFile(w.path)
	if err != nil {
		// partially written or removed; keep the current key
		w.logger.Warn(ctx, "cannot load signing key", "path", w.path, "error", err)
		return
	}
	kid, err := w.ring.Rotate(key)
	if err != nil {
		w.logger.Error(ctx, "signing key rotation failed", "error", err)
		return
	}
	w.logger.Info(ctx, "signing key rotated", "kid", kid)
	w.rotated(kid)
}
