package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/audiotap/internal/audio"
	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/plugins"
	"github.com/desertthunder/audiotap/internal/shared"
)

const archiveTimeout = 5 * time.Second

// Archiver receives the final report of every task that reaches a terminal status.
type Archiver interface {
	Archive(ctx context.Context, report models.Report) error
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its executors.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithArchiver stores terminal reports through a.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

// WithDefaults overrides the values applied to configs that omit sample rate, chunk size or pacing.
func WithDefaults(d models.Defaults) Option {
	return func(m *Manager) { m.defaults = d }
}

// Manager owns the task directory and launches one executor goroutine per task.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*task
	order []string

	registry *plugins.Registry
	decoder  audio.Decoder
	executor *Executor
	defaults models.Defaults
	archiver Archiver
	logger   *log.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewManager creates a manager resolving plugins from registry and audio through decoder.
func NewManager(registry *plugins.Registry, decoder audio.Decoder, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tasks:    make(map[string]*task),
		registry: registry,
		decoder:  decoder,
		defaults: models.StandardDefaults(),
		logger:   log.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	dispatcher := NewDispatcher(registry, m.logger, m.metrics)
	m.executor = NewExecutor(decoder, dispatcher, m.logger, m.metrics)
	return m
}

// Registry returns the plugin registry tasks dispatch against.
func (m *Manager) Registry() *plugins.Registry {
	return m.registry
}

// Start validates cfg, registers a pending task and launches its executor. It does not wait for the task.
//
// Only configuration problems fail synchronously; decode failures surface as the error status.
func (m *Manager) Start(cfg models.AnalysisConfig, sink Sink) (string, error) {
	cfg = cfg.WithDefaults(m.defaults)
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if sink == nil {
		sink = NopSink{}
	}

	id := shared.GenerateID()
	t := newTask(id, cfg)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: task manager is shut down", shared.ErrServiceDown)
	}
	m.tasks[id] = t
	m.order = append(m.order, id)
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.RecordTaskStarted()
	m.logger.Debug("task created", "task_id", id, "plugins", cfg.PluginNames())

	go func() {
		defer m.wg.Done()
		defer close(t.done)
		m.executor.run(m.ctx, t, sink)
		m.archive(t)
	}()
	return id, nil
}

func (m *Manager) archive(t *task) {
	if m.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := m.archiver.Archive(ctx, t.report()); err != nil {
		m.logger.Error("failed to archive report", "task_id", t.id, "err", err)
	}
}

func (m *Manager) lookup(id string) (*task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Stop requests cancellation of a running task.
//
// It returns false for unknown ids, pending or terminal tasks, and repeated calls.
func (m *Manager) Stop(id string) bool {
	t, ok := m.lookup(id)
	if !ok {
		return false
	}
	return t.requestCancel()
}

// Status returns the task status. The boolean is false for unknown ids.
func (m *Manager) Status(id string) (models.Status, bool) {
	t, ok := m.lookup(id)
	if !ok {
		return models.StatusNotFound, false
	}
	return t.currentStatus(), true
}

// Report returns a snapshot of the task. Results may be partial while the task runs.
func (m *Manager) Report(id string) (models.Report, bool) {
	t, ok := m.lookup(id)
	if !ok {
		return models.Report{}, false
	}
	return t.report(), true
}

// Done returns a channel closed once the task is terminal and archived.
func (m *Manager) Done(id string) (<-chan struct{}, bool) {
	t, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	return t.done, true
}

// Wait blocks until the task is done or ctx ends, then returns its report.
func (m *Manager) Wait(ctx context.Context, id string) (models.Report, error) {
	done, ok := m.Done(id)
	if !ok {
		return models.Report{}, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return models.Report{}, ctx.Err()
	}
	r, _ := m.Report(id)
	return r, nil
}

// List summarizes every known task in creation order.
func (m *Manager) List() []models.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Summary, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].summary())
	}
	return out
}

// Shutdown rejects new tasks, cancels running ones and waits for every executor to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	running := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		running = append(running, t)
	}
	m.mu.Unlock()

	for _, t := range running {
		t.requestCancel()
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("task manager stopped", "tasks", len(running))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
