package hub

import (
	"context"
	"testing"

	"github.com/atikulmunna/logtally/internal/model"
)

// BenchmarkHubThroughput measures parse + fan-out to two subscribers.
func BenchmarkHubThroughput(b *testing.B) {
	input := make(chan model.RawLine, 1024)
	h := New(input, csvParser(b), Options{})
	for i := 0; i < 2; i++ {
		sub := h.Subscribe()
		go func() {
			for range sub {
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		_ = h.Start(context.Background())
		close(done)
	}()

	line := model.RawLine{Text: "192.168.1.10,2024-02-01 10:15:00,/home,404,Mozilla/5.0", Source: "bench.csv"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		input <- line
	}
	close(input)
	<-done
}
