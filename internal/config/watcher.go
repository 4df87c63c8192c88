package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"comic-edge/internal/logs"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher re-reads an .env file when it changes and hands the new config to
// onChange. Values in the file override the environment on reload.
type Watcher struct {
	path     string
	logger   *logs.Logger
	onChange func(*Config)
}

func NewWatcher(path string, logger *logs.Logger, onChange func(*Config)) *Watcher {
	return &Watcher{path: path, logger: logger, onChange: onChange}
}

// Start blocks until ctx is done. The parent directory is watched so editors
// that replace the file on save are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() { w.reload(ctx, abs) })

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("config: watcher error: %v", err)
		}
	}
}

// reload is a no-op once ctx is done; a pending debounce may still fire
// after Start has returned.
func (w *Watcher) reload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if err := godotenv.Overload(path); err != nil {
		w.logger.Warnf("config: reload %s: %v", path, err)
		return
	}
	cfg, err := fromEnv()
	if err != nil {
		w.logger.Warnf("config: reload rejected: %v", err)
		return
	}
	w.logger.Infof("config: reloaded %s", path)
	w.onChange(cfg)
}
