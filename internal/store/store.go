// Package store keeps a bounded, insertion-ordered history of log entries per
// logger name. It does no locking; callers serialize access.
package store

import "github.com/atikulmunna/logrelay/internal/model"

// DefaultCapacity is the per-logger history cap used when none is configured.
const DefaultCapacity = 1000

// Store maps logger names to fixed-capacity ring buffers.
type Store struct {
	capacity int
	streams  map[string]*stream
}

// stream is a circular buffer; head indexes the oldest entry. buf grows by
// append until it reaches capacity, then wraps.
type stream struct {
	buf  []model.LogEntry
	head int
	size int
}

// New creates a Store whose streams hold at most capacity entries each.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		streams:  make(map[string]*stream),
	}
}

// Capacity returns the per-logger cap.
func (s *Store) Capacity() int {
	return s.capacity
}

// Ensure creates an empty stream for name if none exists.
func (s *Store) Ensure(name string) {
	s.get(name)
}

func (s *Store) get(name string) *stream {
	st, ok := s.streams[name]
	if !ok {
		st = &stream{}
		s.streams[name] = st
	}
	return st
}

// Append adds entry to the tail of name's history, evicting the oldest entry
// when the stream is full. It creates the stream on first use.
func (s *Store) Append(name string, entry model.LogEntry) {
	st := s.get(name)
	if len(st.buf) < s.capacity {
		st.buf = append(st.buf, entry)
		st.size++
		return
	}
	st.buf[st.head] = entry
	st.head = (st.head + 1) % len(st.buf)
}

// Read returns the most recent limit entries for name, oldest first.
// A limit <= 0 returns the whole history. Unknown names yield an empty slice
// and are not created.
func (s *Store) Read(name string, limit int) []model.LogEntry {
	st, ok := s.streams[name]
	if !ok {
		return []model.LogEntry{}
	}
	n := st.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.LogEntry, n)
	start := st.size - n
	for i := 0; i < n; i++ {
		out[i] = st.buf[(st.head+start+i)%len(st.buf)]
	}
	return out
}

// ReadSince returns entries whose timestamp sorts strictly after watermark,
// oldest first, keeping at most the newest limit of them (limit <= 0: no cap).
// An empty watermark matches every entry. Unknown names are not created.
func (s *Store) ReadSince(name, watermark string, limit int) []model.LogEntry {
	st, ok := s.streams[name]
	if !ok {
		return []model.LogEntry{}
	}

	// Timestamps are non-decreasing within a stream, so scan back from the tail.
	first := st.size
	for first > 0 {
		e := st.buf[(st.head+first-1)%len(st.buf)]
		if watermark != "" && e.Timestamp <= watermark {
			break
		}
		first--
	}
	n := st.size - first
	if limit > 0 && limit < n {
		first += n - limit
		n = limit
	}
	out := make([]model.LogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = st.buf[(st.head+first+i)%len(st.buf)]
	}
	return out
}

// Len returns the number of retained entries for name.
func (s *Store) Len(name string) int {
	if st, ok := s.streams[name]; ok {
		return st.size
	}
	return 0
}

// Clear empties name's history but keeps the stream.
func (s *Store) Clear(name string) {
	if st, ok := s.streams[name]; ok {
		st.reset()
	}
}

// ClearAll empties every history.
func (s *Store) ClearAll() {
	for _, st := range s.streams {
		st.reset()
	}
}

// Remove drops name's stream entirely.
func (s *Store) Remove(name string) {
	delete(s.streams, name)
}

// Has reports whether a stream exists for name.
func (s *Store) Has(name string) bool {
	_, ok := s.streams[name]
	return ok
}

// Names returns the names of all known streams in no particular order.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.streams))
	for name := range s.streams {
		out = append(out, name)
	}
	return out
}

func (st *stream) reset() {
	st.buf = nil
	st.head = 0
	st.size = 0
}
