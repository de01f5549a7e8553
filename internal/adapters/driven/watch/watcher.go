// Package watch waits for files to appear in a directory using filesystem
// notifications.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.DirectoryWatcher = (*Watcher)(nil)

// Watcher is an fsnotify-backed DirectoryWatcher.
type Watcher struct{}

// New creates a watcher.
func New() *Watcher {
	return &Watcher{}
}

// Await blocks until a matching regular file is created or written in dir.
// Files already present when the watch starts count as well, so a file
// landing between the caller's scan and this call is not missed.
func (w *Watcher) Await(ctx context.Context, dir string, match func(path string) bool) (string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return "", fmt.Errorf("watch %s: %w", dir, err)
	}

	if path, ok := scan(dir, match); ok {
		return path, nil
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-fw.Errors:
			if !ok {
				return "", fmt.Errorf("watch %s: watcher closed", dir)
			}
			logger.Warn("watch %s: %v", dir, err)
		case ev, ok := <-fw.Events:
			if !ok {
				return "", fmt.Errorf("watch %s: watcher closed", dir)
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if isFile(ev.Name) && match(ev.Name) {
				logger.Debug("watch %s: %s %s", dir, ev.Op, ev.Name)
				return ev.Name, nil
			}
		}
	}
}

func scan(dir string, match func(string) bool) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.Type().IsRegular() && match(path) {
			return path, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
