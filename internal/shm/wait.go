package shm

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
)

const (
	waitInitialInterval = 10 * time.Millisecond
	waitMaxInterval     = time.Second
)

// WaitForSegment blocks until the named object exists and is at least minSize bytes long.
// The directory is watched for changes, and the object is also checked periodically
// because a watch cannot be trusted on every file system.
func WaitForSegment(ctx context.Context, cfg *Config, minSize int) error {
	if ready(cfg, minSize) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Dir); err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(waitInitialInterval),
		backoff.WithMaxInterval(waitMaxInterval),
		backoff.WithMaxElapsedTime(0),
	)

	ticker := backoff.NewTicker(backoff.WithContext(b, ctx))
	defer ticker.Stop()

	name := filepath.Base(cfg.Path())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fsnotify.ErrClosed
			}

			if filepath.Base(event.Name) != name {
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if ready(cfg, minSize) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fsnotify.ErrClosed
			}
			return err

		case _, ok := <-ticker.C:
			if !ok {
				return ctx.Err()
			}

			if ready(cfg, minSize) {
				return nil
			}
		}
	}
}

func ready(cfg *Config, minSize int) bool {
	size, err := Stat(cfg)
	return err == nil && size >= int64(minSize)
}
