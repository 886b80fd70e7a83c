// Package hub tracks live subscriptions per logger name and fans entries out
// to them. A Registry does no locking of its own; the owner serializes access.
package hub

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/atikulmunna/logrelay/internal/model"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 256

// Subscription is one viewer's delivery channel for one logger name.
type Subscription struct {
	ID   string
	Name string

	ch      chan model.LogEntry
	dropped atomic.Int64
	closed  bool
}

// C returns the channel entries are delivered on. It is closed when the
// subscription is removed from its registry.
func (s *Subscription) C() <-chan model.LogEntry {
	return s.ch
}

// Dropped returns how many entries were discarded for this subscriber.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Registry maps logger names to their active subscriptions.
type Registry struct {
	buffer  int
	subs    map[string]map[*Subscription]struct{}
	total   int
	dropped int64
}

// New creates a Registry whose subscriptions buffer up to buffer entries.
func New(buffer int) *Registry {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Registry{
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers and returns a new subscription for name.
func (r *Registry) Subscribe(name string) *Subscription {
	sub := &Subscription{
		ID:   uuid.NewString(),
		Name: name,
		ch:   make(chan model.LogEntry, r.buffer),
	}
	set, ok := r.subs[name]
	if !ok {
		set = make(map[*Subscription]struct{})
		r.subs[name] = set
	}
	set[sub] = struct{}{}
	r.total++
	return sub
}

// Unsubscribe removes sub and closes its channel. It reports whether sub was
// registered; removing an absent subscription is a no-op.
func (r *Registry) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	set, ok := r.subs[sub.Name]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(r.subs, sub.Name)
	}
	r.total--
	r.close(sub)
	return true
}

// Publish hands entry to every subscription of name without blocking.
// When a subscriber's channel is full its oldest queued entry is discarded to
// make room. Publish returns the number of entries discarded.
func (r *Registry) Publish(name string, entry model.LogEntry) int {
	dropped := 0
	for sub := range r.subs[name] {
		select {
		case sub.ch <- entry:
			continue
		default:
		}
		// Full: evict the oldest queued entry. The consumer may have drained
		// one concurrently, in which case nothing is lost.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			dropped++
		default:
		}
		select {
		case sub.ch <- entry:
		default:
			// Only this publisher sends, so space was just made; unreachable
			// unless the channel has zero capacity.
			sub.dropped.Add(1)
			dropped++
		}
	}
	r.dropped += int64(dropped)
	return dropped
}

// CloseName removes every subscription for name, closing their channels.
func (r *Registry) CloseName(name string) int {
	set := r.subs[name]
	for sub := range set {
		r.close(sub)
	}
	delete(r.subs, name)
	r.total -= len(set)
	return len(set)
}

// CloseAll removes and closes every subscription.
func (r *Registry) CloseAll() {
	for name := range r.subs {
		r.CloseName(name)
	}
}

// Count returns the number of subscriptions for name.
func (r *Registry) Count(name string) int {
	return len(r.subs[name])
}

// Total returns the number of subscriptions across all names.
func (r *Registry) Total() int {
	return r.total
}

// Dropped returns the total number of entries discarded for slow consumers.
func (r *Registry) Dropped() int64 {
	return r.dropped
}

func (r *Registry) close(sub *Subscription) {
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
