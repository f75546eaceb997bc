package storage

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds reported by Watch.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// ChangeCallback is called once per settled file change.
// path is relative to the watched directory's provider root.
type ChangeCallback func(kind string, path string)

const settleDelay = 150 * time.Millisecond

// Watch starts an fsnotify watcher on dir (relative to the FS root) and
// reports changes to .md files until ctx is cancelled. Bursts of events on
// the same file are coalesced; the kind is derived by comparing whether the
// file exists once the burst settles with what was last seen.
func (f *FS) Watch(ctx context.Context, dir string, logger *slog.Logger, cb ChangeCallback) error {
	abs, err := f.safePath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(abs); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", abs))

	known := make(map[string]bool)
	if des, err := os.ReadDir(abs); err == nil {
		for _, d := range des {
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
				known[path.Join(dir, d.Name())] = true
			}
		}
	}
	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	flush := func() {
		for rel := range pending {
			_, statErr := os.Stat(filepath.Join(f.root, filepath.FromSlash(rel)))
			exists := statErr == nil
			existed := known[rel]
			if exists {
				known[rel] = true
			} else {
				delete(known, rel)
			}
			var kind string
			switch {
			case exists && existed:
				kind = ChangeUpdated
			case exists:
				kind = ChangeCreated
			case existed:
				kind = ChangeDeleted
			default:
				continue
			}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			if cb != nil {
				cb(kind, rel)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
				continue
			}
			rel, relErr := filepath.Rel(f.root, ev.Name)
			if relErr != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
