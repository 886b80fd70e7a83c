package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logrelay/internal/model"
)

func TestRegistryBroadcast(t *testing.T) {
	r := New(10)

	sub1 := r.Subscribe("app")
	sub2 := r.Subscribe("app")
	require.NotEqual(t, sub1.ID, sub2.ID)

	r.Publish("app", model.LogEntry{Level: "ERROR", Message: "disk full"})

	// Both subscribers should receive it.
	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case e := <-sub.C():
			assert.Equal(t, "ERROR", e.Level, "sub%d", i+1)
		case <-time.After(time.Second):
			t.Fatalf("sub%d: timed out", i+1)
		}
	}
}

func TestRegistryIsolatesNames(t *testing.T) {
	r := New(10)
	a := r.Subscribe("a")
	b := r.Subscribe("b")

	r.Publish("a", model.LogEntry{Message: "only a"})

	assert.Len(t, a.C(), 1)
	assert.Len(t, b.C(), 0)
}

func TestRegistrySlowConsumerDropsOldest(t *testing.T) {
	const buffer = 4
	r := New(buffer)

	// Subscribe but never read: a slow consumer.
	sub := r.Subscribe("app")

	for i := 0; i < buffer+3; i++ {
		r.Publish("app", model.LogEntry{Message: string(rune('a' + i))})
	}

	assert.EqualValues(t, 3, r.Dropped())
	assert.EqualValues(t, 3, sub.Dropped())

	var got []string
	for i := 0; i < buffer; i++ {
		got = append(got, (<-sub.C()).Message)
	}
	assert.Equal(t, []string{"d", "e", "f", "g"}, got)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	r := New(1)
	sub := r.Subscribe("app")
	require.Equal(t, 1, r.Total())

	assert.True(t, r.Unsubscribe(sub))
	assert.False(t, r.Unsubscribe(sub))
	assert.False(t, r.Unsubscribe(nil))
	assert.Zero(t, r.Total())
	assert.Zero(t, r.Count("app"))

	_, open := <-sub.C()
	assert.False(t, open, "channel is closed after unsubscribe")

	// Publishing to a name with no subscribers is fine.
	assert.Zero(t, r.Publish("app", model.LogEntry{}))
}

func TestCloseNameAndCloseAll(t *testing.T) {
	r := New(1)
	a1 := r.Subscribe("a")
	a2 := r.Subscribe("a")
	b := r.Subscribe("b")

	assert.Equal(t, 2, r.CloseName("a"))
	assert.Equal(t, 1, r.Total())
	for _, sub := range []*Subscription{a1, a2} {
		_, open := <-sub.C()
		assert.False(t, open)
	}
	assert.False(t, r.Unsubscribe(a1))

	r.CloseAll()
	assert.Zero(t, r.Total())
	_, open := <-b.C()
	assert.False(t, open)
}
