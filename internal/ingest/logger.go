// Package ingest bridges leveled logging calls into a log sink.
package ingest

import (
	"sync/atomic"
	"time"

	"github.com/atikulmunna/logrelay/internal/model"
)

// Sink accepts a rendered entry for a logger name.
type Sink interface {
	Ingest(name string, entry model.LogEntry)
}

// Logger renders leveled calls into entries and forwards them to its sink.
// A Logger is safe for concurrent use.
type Logger struct {
	name  string
	level Level
	sink  atomic.Pointer[sinkRef]
	now   func() time.Time
}

type sinkRef struct{ Sink }

// NewLogger returns a Logger named name that forwards records at or above level.
func NewLogger(name string, level Level, sink Sink) *Logger {
	l := &Logger{name: name, level: level, now: time.Now}
	if sink != nil {
		l.sink.Store(&sinkRef{sink})
	}
	return l
}

// Name returns the logger name entries are tagged with.
func (l *Logger) Name() string { return l.name }

// Level returns the logger's threshold.
func (l *Logger) Level() Level { return l.level }

// Enabled reports whether a record at level would be forwarded.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level && l.sink.Load() != nil
}

// Detach stops the logger from forwarding. Used when a name is rebound or
// removed so stale handles cannot deliver duplicates.
func (l *Logger) Detach() {
	l.sink.Store(nil)
}

// Attached reports whether the logger still forwards to a sink.
func (l *Logger) Attached() bool {
	return l.sink.Load() != nil
}

// Log renders rec and forwards it. Records below the threshold are ignored.
func (l *Logger) Log(rec Record) {
	ref := l.sink.Load()
	if ref == nil || levelOf(rec.Level) < l.level {
		return
	}
	if rec.Time.IsZero() {
		rec.Time = l.now()
	}
	if rec.Level == "" {
		rec.Level = InfoLevel.String()
	}
	ref.Ingest(l.name, model.LogEntry{
		Time:       rec.Time,
		Level:      rec.Level,
		Message:    rec.Render(),
		LoggerName: l.name,
	})
}

func (l *Logger) logf(level Level, template string, args []any) {
	if !l.Enabled(level) {
		return
	}
	l.Log(Record{Time: l.now(), Level: level.String(), Name: l.name, Template: template, Args: args})
}

// Debug logs at DEBUG.
func (l *Logger) Debug(template string, args ...any) { l.logf(DebugLevel, template, args) }

// Info logs at INFO.
func (l *Logger) Info(template string, args ...any) { l.logf(InfoLevel, template, args) }

// Warning logs at WARNING.
func (l *Logger) Warning(template string, args ...any) { l.logf(WarningLevel, template, args) }

// Error logs at ERROR.
func (l *Logger) Error(template string, args ...any) { l.logf(ErrorLevel, template, args) }

// Critical logs at CRITICAL.
func (l *Logger) Critical(template string, args ...any) { l.logf(CriticalLevel, template, args) }
