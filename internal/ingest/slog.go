package ingest

import (
	"context"
	"log/slog"
)

// handler is a slog.Handler that forwards records to a Logger.
type handler struct {
	logger *Logger
	attrs  []slog.Attr
	group  string
}

// NewHandler returns a slog.Handler writing to l.
func NewHandler(l *Logger) slog.Handler {
	return &handler{logger: l}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(fromSlogLevel(level))
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fields[key] = a.Value.Any()
		return true
	})
	h.logger.Log(Record{
		Time:     r.Time,
		Level:    fromSlogLevel(r.Level).String(),
		Name:     h.logger.Name(),
		Template: r.Message + renderFields(fields),
	})
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		nh.attrs = append(append([]slog.Attr{}, nh.attrs...), a)
	}
	return &nh
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	if nh.group != "" {
		name = nh.group + "." + name
	}
	nh.group = name
	return &nh
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level < slog.LevelInfo:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarningLevel
	case level == slog.LevelError:
		return ErrorLevel
	default:
		return CriticalLevel
	}
}
