package ingest

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/model"
)

type captureSink struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (c *captureSink) Ingest(name string, entry model.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureSink) all() []model.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.LogEntry(nil), c.entries...)
}

type panicky struct{}

func (panicky) String() string { panic("boom") }

func TestRenderInterpolates(t *testing.T) {
	rec := Record{Template: "user %s logged in %d times", Args: []any{"ana", 3}}
	assert.Equal(t, "user ana logged in 3 times", rec.Render())
}

func TestRenderWithoutArgsIsVerbatim(t *testing.T) {
	rec := Record{Template: "100% done %s"}
	assert.Equal(t, "100% done %s", rec.Render())
}

func TestRenderFallsBackOnBadArguments(t *testing.T) {
	cases := map[string]Record{
		"missing":   {Template: "%s and %s", Args: []any{"one"}},
		"extra":     {Template: "no verbs", Args: []any{1}},
		"wrongtype": {Template: "%d", Args: []any{"x"}},
		"panic":     {Template: "value %v", Args: []any{panicky{}}},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			msg := rec.Render()
			assert.Contains(t, msg, rec.Template)
			assert.Contains(t, msg, "[format error:")
		})
	}
}

func TestLoggerTagsEntries(t *testing.T) {
	sink := &captureSink{}
	l := NewLogger("main", InfoLevel, sink)
	fixed := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Info("started %s", "worker")
	l.Error("failed: %v", errors.New("disk full"))

	got := sink.all()
	require.Len(t, got, 2)
	assert.Equal(t, model.LogEntry{Time: fixed, Level: "INFO", Message: "started worker", LoggerName: "main"}, got[0])
	assert.Equal(t, "ERROR", got[1].Level)
	assert.Equal(t, "failed: disk full", got[1].Message)
}

func TestLoggerThreshold(t *testing.T) {
	sink := &captureSink{}
	l := NewLogger("main", WarningLevel, sink)

	l.Debug("d")
	l.Info("i")
	l.Warning("w")
	l.Critical("c")
	l.Log(Record{Level: "NOTICE", Template: "unknown ranks as info"})

	got := sink.all()
	require.Len(t, got, 2)
	assert.Equal(t, "WARNING", got[0].Level)
	assert.Equal(t, "CRITICAL", got[1].Level)
}

func TestDetachedLoggerDropsRecords(t *testing.T) {
	sink := &captureSink{}
	l := NewLogger("main", DebugLevel, sink)
	l.Detach()

	l.Error("ignored")

	assert.False(t, l.Attached())
	assert.Empty(t, sink.all())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "warn": WarningLevel,
		"Warning": WarningLevel, "error": ErrorLevel, "fatal": CriticalLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestZapCoreForwards(t *testing.T) {
	sink := &captureSink{}
	l := NewLogger("api", InfoLevel, sink)
	zl := zap.New(NewCore(l)).With(zap.String("component", "auth"))

	zl.Debug("hidden")
	zl.Warn("slow request", zap.Int("ms", 1200))

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "WARNING", got[0].Level)
	assert.Equal(t, "slow request component=auth ms=1200", got[0].Message)
	assert.Equal(t, "api", got[0].LoggerName)
}

func TestSlogHandlerForwards(t *testing.T) {
	sink := &captureSink{}
	l := NewLogger("jobs", DebugLevel, sink)
	sl := slog.New(NewHandler(l)).With("job", "reindex").WithGroup("stats")

	sl.Error("job failed", "retries", 3)

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "ERROR", got[0].Level)
	assert.Equal(t, "job failed job=reindex stats.retries=3", got[0].Message)
}
