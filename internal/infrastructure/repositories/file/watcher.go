package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloadable is a file-backed repository the watcher can refresh.
type Reloadable interface {
	Path() string
	ReloadIfChanged() (bool, error)
}

// Watcher reloads repositories when their files are changed by another
// process, such as an admin script or a second service instance sharing the
// data directory. Bursts of events are collapsed into one reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]Reloadable
	debounce time.Duration
	onChange func()
	logger   *zap.SugaredLogger
}

func NewWatcher(dir string, debounce time.Duration, logger *zap.SugaredLogger, targets ...Reloadable) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		targets:  make(map[string]Reloadable, len(targets)),
		debounce: debounce,
		logger:   logger,
	}
	for _, t := range targets {
		w.targets[filepath.Base(t.Path())] = t
	}
	return w, nil
}

// OnChange registers fn to run after at least one target was reloaded.
// It must be called before Run.
func (w *Watcher) OnChange(fn func()) {
	w.onChange = fn
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	dirty := make(map[string]Reloadable)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			target, watched := w.targets[filepath.Base(ev.Name)]
			if !watched {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				if len(dirty) == 0 {
					timer.Reset(w.debounce)
				}
				dirty[target.Path()] = target
			}

		case <-timer.C:
			changed := false
			for path, target := range dirty {
				reloaded, err := target.ReloadIfChanged()
				if err != nil {
					w.logger.Errorw("Failed to reload data file", "path", path, "error", err)
					continue
				}
				if reloaded {
					w.logger.Infow("Reloaded data file after external change", "path", path)
					changed = true
				}
			}
			clear(dirty)
			if changed && w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
