package manager

import (
	"time"

	"go.uber.org/zap"
)

// startSweepLocked launches the inactivity sweep once.
func (m *Manager) startSweepLocked() {
	if m.sweepStop != nil || m.closed {
		return
	}
	m.sweepStop = make(chan struct{})
	m.sweepDone = make(chan struct{})
	go m.sweepLoop(m.sweepStop, m.sweepDone)
}

func (m *Manager) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := m.sweep(m.opts.Now()); n > 0 {
				m.logger.Info("removed idle sessions", zap.Int("count", n))
			}
		}
	}
}

// sweep removes sessions whose loggers have all gone without ingest or access
// for longer than the idle timeout and have no live subscribers. It returns
// how many sessions were removed.
func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var idle []string
	for sessionID, names := range m.sessions {
		if m.sessionIdleLocked(names, now) {
			idle = append(idle, sessionID)
		}
	}
	for _, sessionID := range idle {
		m.removeSessionLocked(sessionID)
	}
	return len(idle)
}

func (m *Manager) sessionIdleLocked(names map[string]struct{}, now time.Time) bool {
	for name := range names {
		if m.subs.Count(name) > 0 || now.Sub(m.activity[name]) <= m.opts.IdleTimeout {
			return false
		}
	}
	return true
}
