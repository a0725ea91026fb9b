package tasks

import (
	"sync/atomic"
	"time"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
)

// TerminalWait bounds how long [ChannelSink] waits to deliver a terminal update.
const TerminalWait = 250 * time.Millisecond

// Sink receives task updates. Emit is called from the executor goroutine and must not block indefinitely.
type Sink interface {
	Emit(models.Update)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(models.Update)

func (f SinkFunc) Emit(u models.Update) { f(u) }

// NopSink discards updates.
type NopSink struct{}

func (NopSink) Emit(models.Update) {}

// MultiSink fans each update out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(u models.Update) {
	for _, s := range m {
		if s != nil {
			s.Emit(u)
		}
	}
}

// ChannelSink delivers updates over a buffered channel.
//
// Incremental updates are dropped when the buffer is full. Terminal updates wait up to
// [TerminalWait] for room. The channel is never closed; readers stop at the terminal update.
type ChannelSink struct {
	ch      chan models.Update
	wait    time.Duration
	dropped atomic.Int64
	metrics *metrics.Metrics
}

// NewChannelSink creates a sink with room for buffer updates.
func NewChannelSink(buffer int, m *metrics.Metrics) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan models.Update, buffer), wait: TerminalWait, metrics: m}
}

// Updates returns the receive side of the sink.
func (s *ChannelSink) Updates() <-chan models.Update {
	return s.ch
}

// Dropped returns the number of updates discarded so far.
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Emit sends u without blocking, or with a bounded wait when u is terminal.
func (s *ChannelSink) Emit(u models.Update) {
	select {
	case s.ch <- u:
		return
	default:
	}

	if u.Terminal() {
		timer := time.NewTimer(s.wait)
		defer timer.Stop()
		select {
		case s.ch <- u:
			return
		case <-timer.C:
		}
	}

	s.dropped.Add(1)
	s.metrics.RecordDropped("channel")
}
