package project

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is the delay after a filesystem event before reloading,
// letting atomic save sequences (write temp + rename) settle.
const debounceInterval = 200 * time.Millisecond

// WatchTemplates reloads registry overrides from path whenever the file
// changes. It watches the parent directory because editors and deploy tools
// replace files by rename, which changes the inode. Blocks until ctx is done.
func WatchTemplates(ctx context.Context, reg *Registry, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	slog.Info("watching workflow templates", "path", path)

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				if err := reg.LoadFile(path); err != nil {
					slog.Warn("failed to reload workflow templates", "path", path, "error", err)
					return
				}
				slog.Info("reloaded workflow templates", "path", path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("template watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
