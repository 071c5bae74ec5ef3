package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of editor writes into one change
const DefaultDebounce = 250 * time.Millisecond

// ErrNotWatchable is returned for resources that are not backed by a file
var ErrNotWatchable = errors.New("resource is not backed by a file")

// Watcher reports changes to a file-backed resource
type Watcher struct {
	file     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the resource's backing file
func NewWatcher(r Resource, logger *slog.Logger) (*Watcher, error) {
	file := r.Filename()
	if file == "" {
		return nil, fmt.Errorf("watch %s: %w", r.Description(), ErrNotWatchable)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", r.Description(), err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		file:     abs,
		debounce: DefaultDebounce,
		logger:   logger,
	}, nil
}

// SetDebounce overrides the quiet period before onChange fires
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// File returns the absolute path being watched
func (w *Watcher) File() string {
	return w.file
}

// Watch blocks until ctx is done, calling onChange after each debounced
// change to the file. The parent directory is watched so that editors which
// replace the file by rename are still observed.
func (w *Watcher) Watch(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.file)); err != nil {
		return fmt.Errorf("watch %s: %w", w.file, err)
	}

	w.logger.Info("Watching resource", "path", w.file)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Resource watcher stopped", "path", w.file)
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Resource changed", "path", w.file, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Resource watcher error", "path", w.file, "error", err)
		}
	}
}
