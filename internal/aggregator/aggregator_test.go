package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atikulmunna/logrelay/internal/manager"
	"github.com/atikulmunna/logrelay/internal/model"
)

func TestEPSCalculation(t *testing.T) {
	agg := New(func() manager.Stats { return manager.Stats{} })

	// Observe 10 entries quickly.
	for i := 0; i < 10; i++ {
		agg.Observe(model.LogEntry{Level: "INFO", Message: "test", LoggerName: "main"}, 0)
	}

	stats := agg.Snapshot()
	assert.EqualValues(t, 10, stats.TotalEvents)
	assert.Equal(t, 2.0, stats.EPS)
}

func TestPruneDropsOldInstants(t *testing.T) {
	now := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
	agg := New(func() manager.Stats { return manager.Stats{} })
	agg.now = func() time.Time { return now }

	agg.Observe(model.LogEntry{Level: "INFO"}, 0)
	now = now.Add(10 * time.Second)
	agg.Observe(model.LogEntry{Level: "INFO"}, 0)
	agg.prune()

	assert.Len(t, agg.window, 1)
	assert.Equal(t, 0.2, agg.Snapshot().EPS)
	assert.EqualValues(t, 2, agg.Snapshot().TotalEvents)
}

func TestLevelAndLoggerCounts(t *testing.T) {
	agg := New(func() manager.Stats {
		return manager.Stats{Loggers: 2, Sessions: 1, Subscribers: 3, Dropped: 4}
	})

	// Observe entries with different levels.
	agg.Observe(model.LogEntry{Level: "INFO", Message: "a", LoggerName: "main"}, 0)
	agg.Observe(model.LogEntry{Level: "INFO", Message: "b", LoggerName: "main"}, 0)
	agg.Observe(model.LogEntry{Level: "ERROR", Message: "c", LoggerName: "jobs"}, 0)
	agg.Observe(model.LogEntry{Level: "WARNING", Message: "d", LoggerName: "main"}, 0)
	agg.Observe(model.LogEntry{Level: "ERROR", Message: "e", LoggerName: "jobs"}, 0)

	stats := agg.Snapshot()
	assert.EqualValues(t, 2, stats.LevelCounts["INFO"])
	assert.EqualValues(t, 2, stats.LevelCounts["ERROR"])
	assert.EqualValues(t, 1, stats.LevelCounts["WARNING"])
	assert.EqualValues(t, 3, stats.LoggerCount["main"])
	assert.EqualValues(t, 2, stats.LoggerCount["jobs"])
	assert.EqualValues(t, 4, stats.DroppedLogs)
	assert.Equal(t, 2, stats.Loggers)
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 3, stats.Subscribers)
}
