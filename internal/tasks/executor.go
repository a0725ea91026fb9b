package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/audiotap/internal/audio"
	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// Executor drives a single task through decode, chunk dispatch and termination.
type Executor struct {
	decoder    audio.Decoder
	dispatcher *Dispatcher
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewExecutor wires the decode and dispatch collaborators.
func NewExecutor(decoder audio.Decoder, dispatcher *Dispatcher, logger *log.Logger, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{decoder: decoder, dispatcher: dispatcher, logger: logger, metrics: m}
}

// run executes t to a terminal status. ctx is cancelled on manager shutdown, which is treated like Stop.
func (e *Executor) run(ctx context.Context, t *task, sink Sink) {
	logger := shared.WithLogger(e.logger, "task_id", t.id)
	ctx = log.WithContext(ctx, logger)
	cfg := t.config
	begun := time.Now()

	logger.Info("decoding", "resource", cfg.AudioResource.String(), "sample_rate", cfg.SampleRate)
	buf, err := e.decoder.Decode(ctx, cfg.AudioResource, cfg.SampleRate)
	if err == nil && buf == nil {
		err = shared.ErrUnreadableResource
	}
	if err != nil {
		e.finish(logger, t, sink, models.StatusError, err.Error(), begun)
		return
	}

	chunks := audio.Chunks(buf.Samples, cfg.ChunkSize)
	if !t.begin(len(chunks)) {
		return
	}
	logger.Info("running", "samples", len(buf.Samples), "chunks", len(chunks), "pacing", cfg.Pacing())

	for i, chunk := range chunks {
		if t.cancelled() || ctx.Err() != nil {
			e.finish(logger, t, sink, models.StatusStopped, "", begun)
			return
		}

		result := e.dispatcher.Dispatch(ctx, chunk, cfg.Plugins)
		t.append(result)
		e.metrics.RecordChunk()
		sink.Emit(models.Update{
			TaskID:  t.id,
			Chunk:   i,
			Offset:  i * cfg.ChunkSize,
			Total:   len(chunks),
			Results: result,
		})

		if i < len(chunks)-1 {
			pace(ctx, t.cancel, cfg.Pacing())
		}
	}

	if t.cancelled() {
		e.finish(logger, t, sink, models.StatusStopped, "", begun)
		return
	}
	e.finish(logger, t, sink, models.StatusCompleted, "", begun)
}

func (e *Executor) finish(logger *log.Logger, t *task, sink Sink, status models.Status, msg string, begun time.Time) {
	stored, ok := t.finish(status, msg)
	if !ok {
		logger.Warn("refused transition", "to", status, "from", stored)
		return
	}
	status = stored

	elapsed := time.Since(begun)
	e.metrics.RecordTaskFinished(status.String(), elapsed)
	if status == models.StatusError {
		logger.Error("task failed", "err", msg)
	} else {
		logger.Info("task finished", "status", status, "elapsed", elapsed.Round(time.Millisecond))
	}
	sink.Emit(models.Update{TaskID: t.id, Status: status, Error: msg})
}

// pace waits d, returning early when the task is cancelled or ctx ends.
func pace(ctx context.Context, cancel <-chan struct{}, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel:
	case <-ctx.Done():
	}
}
