package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/logrelay/internal/model"
)

func entry(ts, msg string) model.LogEntry {
	return model.LogEntry{Timestamp: ts, Level: "INFO", Message: msg, LoggerName: "x"}
}

func messages(entries []model.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestReadReturnsMostRecentInOrder(t *testing.T) {
	s := New(10)
	s.Append("main", entry("1", "a"))
	s.Append("main", entry("2", "b"))

	assert.Equal(t, []string{"a", "b"}, messages(s.Read("main", 100)))
	assert.Equal(t, []string{"b"}, messages(s.Read("main", 1)))
}

func TestEvictionKeepsNewest(t *testing.T) {
	s := New(2)
	for _, m := range []string{"a", "b", "c"} {
		s.Append("x", entry(m, m))
	}

	assert.Equal(t, []string{"b", "c"}, messages(s.Read("x", 10)))
	assert.Equal(t, 2, s.Len("x"))
}

func TestEvictionOverManyWraps(t *testing.T) {
	const capacity = 7
	s := New(capacity)
	for i := 0; i < 50; i++ {
		s.Append("x", entry(fmt.Sprintf("%03d", i), fmt.Sprintf("m%d", i)))
	}

	got := s.Read("x", capacity)
	require.Len(t, got, capacity)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("m%d", 43+i), e.Message)
	}
}

func TestUnknownNameIsEmpty(t *testing.T) {
	s := New(5)

	assert.Empty(t, s.Read("missing", 10))
	assert.Empty(t, s.ReadSince("missing", "", 0))
	assert.False(t, s.Has("missing"), "reads never create streams")
	assert.Empty(t, s.Names())
}

func TestBufferGrowsToCapacity(t *testing.T) {
	s := New(1000)
	s.Ensure("x")
	assert.Zero(t, cap(s.streams["x"].buf), "an empty stream holds no backing array")

	for i := 0; i < 3; i++ {
		s.Append("x", entry(fmt.Sprint(i), fmt.Sprint(i)))
	}
	assert.Less(t, cap(s.streams["x"].buf), 1000)

	s.Clear("x")
	assert.Zero(t, cap(s.streams["x"].buf), "clear releases the backing array")
	s.Append("x", entry("9", "after"))
	assert.Equal(t, []string{"after"}, messages(s.Read("x", 0)))
}

func TestClearIsIdempotent(t *testing.T) {
	s := New(5)
	s.Append("x", entry("1", "a"))

	s.Clear("x")
	s.Clear("x")
	s.Clear("never-seen")

	assert.Empty(t, s.Read("x", 0))
	assert.True(t, s.Has("x"))

	s.Append("x", entry("2", "b"))
	assert.Equal(t, []string{"b"}, messages(s.Read("x", 0)))
}

func TestClearAllAndRemove(t *testing.T) {
	s := New(5)
	s.Append("a", entry("1", "a1"))
	s.Append("b", entry("1", "b1"))

	s.ClearAll()
	assert.Zero(t, s.Len("a"))
	assert.Zero(t, s.Len("b"))

	s.Remove("a")
	assert.False(t, s.Has("a"))
	assert.ElementsMatch(t, []string{"b"}, s.Names())
}

func TestNamesAreIsolated(t *testing.T) {
	s := New(5)
	s.Append("a", entry("1", "a1"))
	s.Append("b", entry("2", "b1"))
	s.Clear("a")

	assert.Empty(t, s.Read("a", 0))
	assert.Equal(t, []string{"b1"}, messages(s.Read("b", 0)))
}

func TestReadSinceFiltersStrictlyAfterWatermark(t *testing.T) {
	s := New(10)
	for i := 1; i <= 5; i++ {
		s.Append("x", entry(fmt.Sprintf("t%d", i), fmt.Sprintf("m%d", i)))
	}

	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, messages(s.ReadSince("x", "", 0)))
	assert.Equal(t, []string{"m4", "m5"}, messages(s.ReadSince("x", "t3", 0)))
	assert.Empty(t, s.ReadSince("x", "t5", 0))
	assert.Equal(t, []string{"m5"}, messages(s.ReadSince("x", "t1", 1)))
}

func TestReadSinceIsMonotonic(t *testing.T) {
	s := New(20)
	for i := 0; i < 15; i++ {
		s.Append("x", entry(fmt.Sprintf("%02d", i), fmt.Sprintf("m%d", i)))
	}

	for t1 := 0; t1 < 15; t1++ {
		for t2 := t1; t2 < 15; t2++ {
			early := s.ReadSince("x", fmt.Sprintf("%02d", t1), 0)
			late := s.ReadSince("x", fmt.Sprintf("%02d", t2), 0)
			var want []model.LogEntry
			for _, e := range early {
				if e.Timestamp > fmt.Sprintf("%02d", t2) {
					want = append(want, e)
				}
			}
			assert.Equal(t, messages(want), messages(late))
		}
	}
}
