package ui

import (
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/tasks"
)

// startedMsg reports the outcome of starting a task.
type startedMsg struct {
	taskID string
	sink   *tasks.ChannelSink
	err    error
}

// updateMsg carries one update read from the task's sink.
type updateMsg models.Update

// finishedMsg carries the final report once the terminal update arrived.
type finishedMsg struct {
	report models.Report
}

// savedMsg reports where the rendered report was written.
type savedMsg struct {
	path string
	err  error
}
