package tasks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
)

func incremental(i int) models.Update {
	return models.Update{TaskID: "t", Chunk: i, Results: models.ChunkResult{}}
}

func TestChannelSink(t *testing.T) {
	t.Run("incremental updates never block", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		sink := NewChannelSink(2, m)

		start := time.Now()
		for i := 0; i < 5; i++ {
			sink.Emit(incremental(i))
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("Emit blocked for %s", elapsed)
		}

		if sink.Dropped() != 3 {
			t.Errorf("Dropped() = %d, want 3", sink.Dropped())
		}
		if got := testutil.ToFloat64(m.UpdatesDropped.WithLabelValues("channel")); got != 3 {
			t.Errorf("dropped metric = %v, want 3", got)
		}

		first := <-sink.Updates()
		second := <-sink.Updates()
		if first.Chunk != 0 || second.Chunk != 1 {
			t.Errorf("expected the oldest updates to be kept, got %d and %d", first.Chunk, second.Chunk)
		}
	})

	t.Run("terminal update waits for room", func(t *testing.T) {
		sink := NewChannelSink(1, nil)
		sink.Emit(incremental(0))

		go func() {
			time.Sleep(20 * time.Millisecond)
			<-sink.Updates()
		}()

		sink.Emit(models.Update{TaskID: "t", Status: models.StatusCompleted})
		if sink.Dropped() != 0 {
			t.Fatal("terminal update should have been delivered once room appeared")
		}
		if u := <-sink.Updates(); !u.Terminal() {
			t.Errorf("expected terminal update, got %+v", u)
		}
	})

	t.Run("terminal wait is bounded", func(t *testing.T) {
		sink := NewChannelSink(0, nil)

		start := time.Now()
		sink.Emit(models.Update{TaskID: "t", Status: models.StatusStopped})
		elapsed := time.Since(start)

		if elapsed < TerminalWait || elapsed > TerminalWait+time.Second {
			t.Errorf("terminal Emit took %s, want about %s", elapsed, TerminalWait)
		}
		if sink.Dropped() != 1 {
			t.Errorf("Dropped() = %d, want 1", sink.Dropped())
		}
	})
}

func TestMultiSink(t *testing.T) {
	var a, b atomic.Int32
	multi := MultiSink{
		SinkFunc(func(models.Update) { a.Add(1) }),
		nil,
		NopSink{},
		SinkFunc(func(models.Update) { b.Add(1) }),
	}

	multi.Emit(incremental(0))
	multi.Emit(incremental(1))

	if a.Load() != 2 || b.Load() != 2 {
		t.Errorf("fan-out counts = %d, %d; want 2, 2", a.Load(), b.Load())
	}
}
