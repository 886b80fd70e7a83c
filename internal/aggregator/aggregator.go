package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/logrelay/internal/manager"
	"github.com/atikulmunna/logrelay/internal/model"
)

// window is the span EPS is averaged over.
const window = 5 * time.Second

// Stats holds a point-in-time snapshot of aggregated metrics.
type Stats struct {
	Uptime      string           `json:"uptime"`
	TotalEvents int64            `json:"total_events"`
	EPS         float64          `json:"eps"`
	LevelCounts map[string]int64 `json:"level_counts"`
	LoggerCount map[string]int64 `json:"logger_counts"`
	DroppedLogs int64            `json:"dropped_logs"`
	Loggers     int              `json:"loggers"`
	Sessions    int              `json:"sessions"`
	Subscribers int              `json:"subscribers"`
}

// Aggregator observes ingested entries and computes time-windowed metrics.
type Aggregator struct {
	mu           sync.RWMutex
	startTime    time.Time
	totalEvents  int64
	levelCounts  map[string]int64
	loggerCounts map[string]int64
	window       []time.Time // ingestion instants for EPS calculation
	state        func() manager.Stats
	now          func() time.Time
}

// New creates an Aggregator. state provides live values from the manager.
func New(state func() manager.Stats) *Aggregator {
	return &Aggregator{
		startTime:    time.Now(),
		levelCounts:  make(map[string]int64),
		loggerCounts: make(map[string]int64),
		state:        state,
		now:          time.Now,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	levels := make(map[string]int64, len(a.levelCounts))
	for k, v := range a.levelCounts {
		levels[k] = v
	}
	loggers := make(map[string]int64, len(a.loggerCounts))
	for k, v := range a.loggerCounts {
		loggers[k] = v
	}

	// Calculate EPS from the sliding window.
	cutoff := a.now().Add(-window)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	st := a.state()
	return Stats{
		Uptime:      time.Since(a.startTime).Truncate(time.Second).String(),
		TotalEvents: a.totalEvents,
		EPS:         float64(recent) / window.Seconds(),
		LevelCounts: levels,
		LoggerCount: loggers,
		DroppedLogs: st.Dropped,
		Loggers:     st.Loggers,
		Sessions:    st.Sessions,
		Subscribers: st.Subscribers,
	}
}

// Start periodically prunes the sliding window. Blocks until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.prune()
		}
	}
}

// Observe implements manager.Observer.
func (a *Aggregator) Observe(entry model.LogEntry, _ int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalEvents++
	a.levelCounts[entry.Level]++
	a.loggerCounts[entry.LoggerName]++
	a.window = append(a.window, a.now())
}

// prune removes instants older than the window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-window)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
