// Package watcher expands source globs and reports changes to matching files.
//
// Directories are watched rather than files, so a file created after startup
// (including the replacement written by log rotation) is reported as soon as
// its path matches one of the patterns.
package watcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event is a change to a file matching one of the watched patterns.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher reports changes to files matching a set of glob patterns.
type Watcher struct {
	fsw      *fsnotify.Watcher
	Events   chan Event
	patterns []string
	paths    []string
	log      *zap.Logger
}

// New expands patterns (doublestar syntax, e.g. /var/log/**/*.log) and
// watches the directories that hold, or may later hold, matching files.
func New(patterns []string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:    fsw,
		Events: make(chan Event, 256),
		log:    log,
	}

	dirs := make(map[string]struct{})
	for _, pattern := range patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			log.Warn("bad source pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if !doublestar.ValidatePathPattern(abs) {
			log.Warn("bad source pattern", zap.String("pattern", pattern))
			continue
		}
		w.patterns = append(w.patterns, abs)

		base, _ := doublestar.SplitPattern(filepath.ToSlash(abs))
		dirs[filepath.FromSlash(base)] = struct{}{}

		matches, err := doublestar.FilepathGlob(abs, doublestar.WithFilesOnly())
		if err != nil {
			log.Warn("failed to expand source pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, m := range matches {
			w.paths = append(w.paths, m)
			dirs[filepath.Dir(m)] = struct{}{}
		}
	}

	for dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	return w, nil
}

// Start forwards events for matching files until ctx is cancelled, then
// closes Events.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !w.Match(ev.Name) {
				continue
			}
			select {
			case w.Events <- Event{Path: ev.Name, Op: ev.Op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// Paths returns the files that matched at startup.
func (w *Watcher) Paths() []string {
	return w.paths
}

// Match reports whether path matches one of the watched patterns.
func (w *Watcher) Match(path string) bool {
	for _, p := range w.patterns {
		if ok, _ := doublestar.PathMatch(p, path); ok {
			return true
		}
	}
	return false
}
