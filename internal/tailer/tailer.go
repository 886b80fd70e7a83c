// Package tailer follows appended lines in watched files and feeds them to
// named loggers.
package tailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/model"
	"github.com/atikulmunna/logrelay/internal/watcher"
)

// Tailer reads newly appended lines from watched files and emits RawLine values.
type Tailer struct {
	mu     sync.Mutex
	files  map[string]*trackedFile
	out    chan model.RawLine
	ckpt   *Checkpoint
	events <-chan watcher.Event
	watch  *watcher.Watcher
	log    *zap.Logger
}

type trackedFile struct {
	path   string
	file   *os.File
	reader *bufio.Reader
	offset int64
	buf    string // partial line buffer
}

// New creates a Tailer that reads events from the given Watcher. ckpt may be
// nil, in which case files are always read from their current end.
func New(w *watcher.Watcher, ckpt *Checkpoint, log *zap.Logger) *Tailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tailer{
		files:  make(map[string]*trackedFile),
		out:    make(chan model.RawLine, 512),
		ckpt:   ckpt,
		events: w.Events,
		watch:  w,
		log:    log,
	}
}

// Lines returns the channel where raw log lines are sent.
func (t *Tailer) Lines() <-chan model.RawLine {
	return t.out
}

// Start begins processing watcher events. Blocks until context is cancelled.
func (t *Tailer) Start(ctx context.Context) {
	defer close(t.out)
	defer t.closeAll()

	for _, p := range t.watch.Paths() {
		t.openFile(p, false)
	}

	saveTicker := time.NewTicker(5 * time.Second)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.saveCheckpoint()
			return

		case ev, ok := <-t.events:
			if !ok {
				t.saveCheckpoint()
				return
			}
			t.handleEvent(ctx, ev)

		case <-saveTicker.C:
			t.saveCheckpoint()
		}
	}
}

// handleEvent dispatches watcher events to the appropriate handler.
func (t *Tailer) handleEvent(ctx context.Context, ev watcher.Event) {
	switch {
	case ev.Op.Has(fsnotify.Write):
		t.readNewLines(ctx, ev.Path)

	case ev.Op.Has(fsnotify.Create):
		// A file created after startup (or a rotated replacement) is new
		// content, so read it from the beginning.
		t.closeFile(ev.Path)
		t.openFile(ev.Path, true)
		t.readNewLines(ctx, ev.Path)

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		t.closeFile(ev.Path)
		t.ckpt.Delete(ev.Path)
	}
}

// openFile opens a file for tailing. Unless fromStart is set it resumes from
// the checkpointed offset, or the end of the file when there is none.
func (t *Tailer) openFile(path string, fromStart bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.log.Warn("cannot open source file", zap.String("path", path), zap.Error(err))
		return
	}

	// Resume from checkpoint or start at end of file. A checkpoint beyond the
	// current size means the file was truncated, so start over.
	end, _ := f.Seek(0, io.SeekEnd)
	offset := end
	if saved, ok := t.ckpt.Get(path); ok && saved <= end {
		offset = saved
	}
	if fromStart {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		t.log.Warn("cannot seek source file", zap.String("path", path), zap.Error(err))
	}

	t.files[path] = &trackedFile{
		path:   path,
		file:   f,
		reader: bufio.NewReader(f),
		offset: offset,
	}
}

// readNewLines reads from the last offset to EOF and emits complete lines.
// A trailing fragment without a newline is held until the rest arrives.
func (t *Tailer) readNewLines(ctx context.Context, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tf, ok := t.files[path]
	if !ok {
		return
	}

	for {
		chunk, err := tf.reader.ReadString('\n')
		tf.offset += int64(len(chunk))
		if err != nil {
			tf.buf += chunk
			if !errors.Is(err, io.EOF) {
				t.log.Warn("read error on source file", zap.String("path", path), zap.Error(err))
			}
			break
		}
		line := trimEOL(tf.buf + chunk)
		tf.buf = ""
		select {
		case t.out <- model.RawLine{Text: line, Source: path}:
		case <-ctx.Done():
			return
		}
	}

	// Only complete lines count as consumed.
	t.ckpt.Set(path, tf.offset-int64(len(tf.buf)))
}

// closeFile releases a tracked file.
func (t *Tailer) closeFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tf, ok := t.files[path]; ok {
		tf.file.Close()
		delete(t.files, path)
	}
}

// saveCheckpoint persists the current offsets to disk.
func (t *Tailer) saveCheckpoint() {
	if err := t.ckpt.Save(); err != nil {
		t.log.Warn("checkpoint save failed", zap.Error(err))
	}
}

// closeAll closes all tracked file handles.
func (t *Tailer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, tf := range t.files {
		tf.file.Close()
		delete(t.files, path)
	}
}

func trimEOL(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
