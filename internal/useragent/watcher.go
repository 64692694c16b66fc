package useragent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher serves the current Classifier and swaps it when the crawler list file changes.
type Watcher struct {
	path    string
	current atomic.Pointer[Classifier]
	logger  *zap.Logger
}

// NewWatcher loads path once and returns a Watcher serving it.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: filepath.Clean(path), logger: logger}
	w.current.Store(c)
	return w, nil
}

// IsCrawler delegates to the active Classifier.
func (w *Watcher) IsCrawler(userAgent string) bool {
	return w.Classifier().IsCrawler(userAgent)
}

// Match delegates to the active Classifier.
func (w *Watcher) Match(userAgent string) (string, bool) {
	return w.Classifier().Match(userAgent)
}

// Classifier returns the active Classifier.
func (w *Watcher) Classifier() *Classifier {
	return w.current.Load()
}

// Reload re-reads the file; on failure the previous list stays active.
func (w *Watcher) Reload() error {
	c, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	w.current.Store(c)
	w.logger.Info("crawler list reloaded", zap.String("path", w.path), zap.Int("patterns", len(c.patterns)))
	return nil
}

// Run watches the file's directory until ctx is done. Editors often replace files by rename, so the
// directory is watched instead of the file itself.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck // shutdown path

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("crawler list reload failed; keeping previous list", zap.Error(err))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("crawler list watcher error", zap.Error(err))
		}
	}
}
