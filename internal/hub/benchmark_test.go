package hub

import (
	"fmt"
	"testing"

	"github.com/atikulmunna/logrelay/internal/model"
)

// BenchmarkRegistryPublish measures the cost of publishing to N subscribers.
func BenchmarkRegistryPublish1(b *testing.B)  { benchPublish(b, 1) }
func BenchmarkRegistryPublish5(b *testing.B)  { benchPublish(b, 5) }
func BenchmarkRegistryPublish10(b *testing.B) { benchPublish(b, 10) }

func benchPublish(b *testing.B, numSubs int) {
	r := New(DefaultBuffer)

	// Create subscribers and drain them.
	done := make(chan struct{})
	for i := 0; i < numSubs; i++ {
		sub := r.Subscribe("bench")
		go func() {
			for range sub.C() {
			}
			done <- struct{}{}
		}()
	}

	entry := model.LogEntry{Level: "INFO", LoggerName: "bench"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		entry.Message = fmt.Sprintf("benchmark event %d", i)
		r.Publish("bench", entry)
	}

	b.StopTimer()
	r.CloseAll()
	for i := 0; i < numSubs; i++ {
		<-done
	}
}
