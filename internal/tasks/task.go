package tasks

import (
	"sync"
	"time"

	"github.com/desertthunder/audiotap/internal/models"
)

// task is the mutable record behind a task id. mu guards every field below it.
type task struct {
	id     string
	config models.AnalysisConfig
	done   chan struct{}
	cancel chan struct{}

	mu              sync.Mutex
	status          models.Status
	results         []models.ChunkResult
	total           int
	errMsg          string
	cancelRequested bool
	createdAt       time.Time
	startedAt       time.Time
	finishedAt      time.Time
}

func newTask(id string, cfg models.AnalysisConfig) *task {
	return &task{
		id:        id,
		config:    cfg,
		done:      make(chan struct{}),
		cancel:    make(chan struct{}),
		status:    models.StatusPending,
		createdAt: time.Now(),
	}
}

// begin moves pending to running and records the chunk count.
func (t *task) begin(total int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.CanTransition(models.StatusRunning) {
		return false
	}
	t.status = models.StatusRunning
	t.total = total
	t.startedAt = time.Now()
	t.results = make([]models.ChunkResult, 0, total)
	return true
}

// finish moves the task to a terminal status and returns the status stored.
//
// A completion racing a granted cancel request is stored as stopped. The boolean is false when
// the state machine refuses the transition.
func (t *task) finish(status models.Status, msg string) (models.Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if status == models.StatusCompleted && t.cancelRequested {
		status = models.StatusStopped
	}
	if !t.status.CanTransition(status) {
		return t.status, false
	}
	t.status = status
	t.errMsg = msg
	t.finishedAt = time.Now()
	return status, true
}

// requestCancel sets the cancel flag when the task is running and no cancel was requested yet.
func (t *task) requestCancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != models.StatusRunning || t.cancelRequested {
		return false
	}
	t.cancelRequested = true
	close(t.cancel)
	return true
}

func (t *task) cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelRequested
}

func (t *task) append(r models.ChunkResult) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, r)
	return len(t.results)
}

func (t *task) currentStatus() models.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *task) report() models.Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := models.Report{
		TaskID:      t.id,
		Status:      t.status,
		Config:      t.config.Clone(),
		Results:     append([]models.ChunkResult{}, t.results...),
		Error:       t.errMsg,
		TotalChunks: t.total,
		CreatedAt:   t.createdAt,
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		r.StartedAt = &started
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		r.FinishedAt = &finished
	}
	return r
}

func (t *task) summary() models.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.Summary{
		TaskID:    t.id,
		Status:    t.status,
		Resource:  t.config.AudioResource.Location(),
		Chunks:    len(t.results),
		CreatedAt: t.createdAt,
	}
}
