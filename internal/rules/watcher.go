package rules

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

var ErrNoRulesFile = errors.New("rules engine has no file to watch")

const reloadSettle = 100 * time.Millisecond

// Watch reloads the engine whenever its rules file is written, created,
// renamed or removed. It watches the parent directory so editors that replace
// the file atomically are followed. onError receives reload failures; the
// previous rules stay active. Watch blocks until ctx is done.
func Watch(ctx context.Context, engine *Engine, logger zerolog.Logger, onError func(error)) error {
	path := engine.Path()
	if path == "" {
		return ErrNoRulesFile
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	logger = logger.With().Str("component", "rules").Str("path", path).Logger()
	logger.Info().Msg("Watching rules file")

	target := filepath.Clean(path)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Editors often emit several events per save.
			settle = time.After(reloadSettle)
		case <-settle:
			settle = nil
			if err := engine.Reload(); err != nil {
				logger.Warn().Err(err).Msg("Rules reload failed, keeping previous rules")
				if onError != nil {
					onError(err)
				}
				continue
			}
			logger.Info().Int("rules", engine.Len()).Msg("Rules reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Rules watcher error")
		}
	}
}
