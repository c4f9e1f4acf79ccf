package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
)

// Watch reloads the configuration whenever the file at path changes and
// passes each successfully validated result to onChange.  Invalid or
// unreadable intermediate states are logged and skipped, keeping the last
// good configuration in effect.  Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: editors and
// configmap mounts replace the file, which would otherwise drop the watch
// after the first change.
func Watch(ctx context.Context, path string, log logging.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)
	log = log.Named("config").With(logging.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload rejected", logging.Err(err))
				continue
			}
			log.Info("config reloaded")
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logging.Err(err))
		}
	}
}
