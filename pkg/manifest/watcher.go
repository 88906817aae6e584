package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a skill registry when manifests under a directory change.
//
// Reloads are debounced so editors that write manifests in multiple
// operations trigger a single reload.
type Watcher struct {
	registry *Registry
	dir      string
	logger   *zap.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given skills directory.
func NewWatcher(registry *Registry, dir string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	return &Watcher{
		registry: registry,
		dir:      dir,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		watcher:  fw,
	}, nil
}

// Start begins watching in a background goroutine until ctx is cancelled.
//
// fsnotify is not recursive, so every existing skill subdirectory is
// added to the watch alongside the root; directories created later are
// added as their Create events arrive.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading skills directory %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(w.dir, entry.Name())
		if err := w.watcher.Add(sub); err != nil {
			return fmt.Errorf("watching %s: %w", sub, err)
		}
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.Warn("watching new skill directory failed",
							zap.String("path", event.Name),
							zap.Error(err),
						)
					}
				}
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("manifest change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if _, err := w.registry.LoadDir(w.dir); err != nil {
				w.logger.Warn("registry reload failed", zap.Error(err))
			} else {
				w.logger.Info("registry reloaded", zap.String("dir", w.dir))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// relevant reports whether a filesystem event should trigger a reload.
// Only writes, creates, and removes of manifest files or skill
// directories matter.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	// Directory-level events have arbitrary names; manifest writes match
	// the conventional file name.
	return base == ManifestFileName || filepath.Ext(base) == ""
}
