package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watch fires a dirty-only trigger when the database file (or its -wal and
// -journal companions) has been quiet for Debounce after a write.
func (d *Daemon) watch(ctx context.Context) error {
	path, err := filepath.Abs(d.opts.DBPath)
	if err != nil {
		return err
	}
	dir, base := filepath.Dir(path), filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(d.opts.Debounce)
			} else {
				timer.Reset(d.opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn(ctx, "file watcher error", "error", err)

		case <-fire:
			fire = nil
			d.fire(trigger{reason: "local change", onlyDirty: true})
		}
	}
}
