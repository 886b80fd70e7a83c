// Package manager owns per-logger history, live subscriptions, logger
// bindings and session bindings behind a single lock.
package manager

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/hub"
	"github.com/atikulmunna/logrelay/internal/ingest"
	"github.com/atikulmunna/logrelay/internal/model"
	"github.com/atikulmunna/logrelay/internal/store"
)

// ErrNotInitialized is returned by logger operations before Attach.
var ErrNotInitialized = errors.New("log manager not attached to a host")

// DefaultTimestampFormat is fixed-width and sorts lexicographically in time order.
const DefaultTimestampFormat = "2006-01-02 15:04:05.000000000"

// Defaults for Options fields left zero.
const (
	DefaultReadLimit     = 100
	DefaultSweepInterval = 5 * time.Minute
	DefaultIdleTimeout   = time.Hour
)

// Host mounts the manager's delivery handlers on an HTTP surface.
type Host interface {
	Mount(m *Manager) error
}

// Observer is notified after each entry is ingested, outside the lock.
type Observer interface {
	Observe(entry model.LogEntry, dropped int)
}

// Options configures a Manager.
type Options struct {
	Capacity         int
	SubscriberBuffer int
	DefaultLevel     ingest.Level
	TimestampFormat  string
	SweepInterval    time.Duration
	IdleTimeout      time.Duration
	Location         *time.Location
	Logger           *zap.Logger
	Observers        []Observer
	Now              func() time.Time
}

// Stats is a point-in-time view of the manager's state.
type Stats struct {
	Loggers     int   `json:"loggers"`
	Sessions    int   `json:"sessions"`
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped"`
}

// Manager coordinates ingestion, retention and delivery. All mutable state is
// guarded by mu, so an append, its eviction and its fan-out are observed as
// one step by every reader.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	attached  bool
	closed    bool
	store     *store.Store
	subs      *hub.Registry
	bindings  map[string]*ingest.Logger
	sessions  map[string]map[string]struct{}
	activity  map[string]time.Time
	lastStamp time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates a Manager. It must be attached to a host before loggers can be
// created, and closed to stop its background sweep.
func New(opts Options) *Manager {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = DefaultTimestampFormat
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		opts:     opts,
		logger:   logger,
		store:    store.New(opts.Capacity),
		subs:     hub.New(opts.SubscriberBuffer),
		bindings: make(map[string]*ingest.Logger),
		sessions: make(map[string]map[string]struct{}),
		activity: make(map[string]time.Time),
	}
}

// Attach lets host mount the delivery handlers and marks the manager ready.
func (m *Manager) Attach(host Host) error {
	if host != nil {
		if err := host.Mount(m); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.attached = true
	m.mu.Unlock()
	return nil
}

// Capacity returns the per-logger history cap.
func (m *Manager) Capacity() int {
	return m.store.Capacity()
}

// CreateLogger binds name to a Logger at level. Calling it again at the same
// level returns the existing Logger; a different level replaces the binding
// and detaches the previous Logger so it cannot deliver duplicates.
func (m *Manager) CreateLogger(name string, level ingest.Level) (*ingest.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return nil, ErrNotInitialized
	}
	return m.bindLocked(name, level, true), nil
}

func (m *Manager) bindLocked(name string, level ingest.Level, rebind bool) *ingest.Logger {
	if l, ok := m.bindings[name]; ok && (l.Level() == level || !rebind) {
		return l
	}
	if old, ok := m.bindings[name]; ok {
		old.Detach()
	}
	l := ingest.NewLogger(name, level, m)
	m.bindings[name] = l
	m.store.Ensure(name)
	m.touchLocked(name)
	return l
}

// GetLogger returns the Logger for name, or for the session-scoped name
// name_sessionID when sessionID is set, creating it at the default level if
// needed. Every name looked up under a session is tracked with it, and the
// first lookup for a session starts the inactivity sweep.
func (m *Manager) GetLogger(name, sessionID string) (*ingest.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return nil, ErrNotInitialized
	}
	key := SessionName(name, sessionID)
	l := m.bindLocked(key, m.opts.DefaultLevel, false)
	m.touchLocked(key)
	if sessionID != "" {
		names, ok := m.sessions[sessionID]
		if !ok {
			names = make(map[string]struct{})
			m.sessions[sessionID] = names
			m.startSweepLocked()
		}
		names[key] = struct{}{}
	}
	return l, nil
}

// SessionName derives the logger name for a session.
func SessionName(name, sessionID string) string {
	if sessionID == "" {
		return name
	}
	return name + "_" + sessionID
}

// Ingest stamps entry, appends it to name's history and publishes it to
// name's subscribers in one critical section. Safe for concurrent use.
func (m *Manager) Ingest(name string, entry model.LogEntry) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	entry.LoggerName = name
	m.stampLocked(&entry)
	m.store.Append(name, entry)
	dropped := m.subs.Publish(name, entry)
	m.touchLocked(name)
	m.mu.Unlock()

	if dropped > 0 {
		m.logger.Debug("dropped entries for slow subscriber",
			zap.String("logger", name), zap.Int("dropped", dropped))
	}
	for _, o := range m.opts.Observers {
		o.Observe(entry, dropped)
	}
}

// stampLocked formats the wire timestamp from the manager's clock, clamped so
// stamps strictly increase across the manager. The record's own Time is kept
// as-is and never moves the clamp.
func (m *Manager) stampLocked(entry *model.LogEntry) {
	t := m.opts.Now()
	if !t.After(m.lastStamp) {
		t = m.lastStamp.Add(time.Nanosecond)
	}
	m.lastStamp = t
	if entry.Time.IsZero() {
		entry.Time = t
	}
	entry.Timestamp = t.In(m.opts.Location).Format(m.opts.TimestampFormat)
}

// Read returns the most recent limit entries for name, oldest first
// (limit <= 0: DefaultReadLimit).
func (m *Manager) Read(name string, limit int) []model.LogEntry {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(name)
	return m.store.Read(name, limit)
}

// ReadSince returns entries for name stamped strictly after watermark, keeping
// at most the newest limit (limit <= 0: whole history).
func (m *Manager) ReadSince(name, watermark string, limit int) []model.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked(name)
	return m.store.ReadSince(name, watermark, limit)
}

// Subscribe registers a live subscription for name and returns the backlog
// at that instant. No entry is missing from, or repeated across, the backlog
// and the subscription channel.
func (m *Manager) Subscribe(name string) ([]model.LogEntry, *hub.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	backlog := m.store.Read(name, 0)
	sub := m.subs.Subscribe(name)
	if m.closed {
		m.subs.Unsubscribe(sub)
	}
	m.touchLocked(name)
	return backlog, sub
}

// Unsubscribe removes sub. It is safe to call more than once.
func (m *Manager) Unsubscribe(sub *hub.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.Unsubscribe(sub)
}

// Clear empties name's history, or every history when name is empty.
func (m *Manager) Clear(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		m.store.ClearAll()
		return
	}
	m.store.Clear(name)
}

// ClearSession removes the session's logger binding, its history and its
// subscriptions entirely, and forgets the session. Unknown sessions are a no-op.
func (m *Manager) ClearSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeSessionLocked(sessionID)
}

func (m *Manager) removeSessionLocked(sessionID string) bool {
	names, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	delete(m.sessions, sessionID)
	for name := range names {
		if l, ok := m.bindings[name]; ok {
			l.Detach()
			delete(m.bindings, name)
		}
		m.store.Remove(name)
		m.subs.CloseName(name)
		delete(m.activity, name)
	}
	return true
}

// touchLocked records access to name. Names with neither a stream nor a
// binding are ignored so lookups of unknown names leave no state behind.
func (m *Manager) touchLocked(name string) {
	if _, bound := m.bindings[name]; !bound && !m.store.Has(name) {
		return
	}
	m.activity[name] = m.opts.Now()
}

// Stats returns counts of loggers, sessions and subscribers.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Loggers:     len(m.store.Names()),
		Sessions:    len(m.sessions),
		Subscribers: m.subs.Total(),
		Dropped:     m.subs.Dropped(),
	}
}

// Close stops the sweep and ends every subscription. Further ingests are
// ignored. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.subs.CloseAll()
	stop, done := m.sweepStop, m.sweepDone
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
