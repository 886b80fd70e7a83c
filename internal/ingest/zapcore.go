package ingest

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// core is a zapcore.Core that forwards entries to a Logger. Tee it with a
// host's existing core to mirror that logger into a named stream.
type core struct {
	logger *Logger
	fields []zapcore.Field
}

// NewCore returns a zapcore.Core writing to l.
func NewCore(l *Logger) zapcore.Core {
	return &core{logger: l}
}

func (c *core) Enabled(level zapcore.Level) bool {
	return c.logger.Enabled(fromZapLevel(level))
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	return &core{
		logger: c.logger,
		fields: append(append([]zapcore.Field{}, c.fields...), fields...),
	}
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	c.logger.Log(Record{
		Time:     ent.Time,
		Level:    fromZapLevel(ent.Level).String(),
		Name:     c.logger.Name(),
		Template: ent.Message + renderFields(enc.Fields),
	})
	return nil
}

func (c *core) Sync() error { return nil }

func fromZapLevel(level zapcore.Level) Level {
	switch {
	case level <= zapcore.DebugLevel:
		return DebugLevel
	case level == zapcore.InfoLevel:
		return InfoLevel
	case level == zapcore.WarnLevel:
		return WarningLevel
	case level == zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return CriticalLevel
	}
}

// renderFields appends " k=v" pairs in key order.
func renderFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
