package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Plugin outcomes recorded by [Metrics.RecordPlugin].
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Metrics contains all Prometheus metrics for audiotap.
type Metrics struct {
	// Task metrics
	TasksStarted  prometheus.Counter
	TasksFinished *prometheus.CounterVec
	ActiveTasks   prometheus.Gauge
	TaskDuration  prometheus.Histogram

	// Chunk and plugin metrics
	ChunksProcessed   prometheus.Counter
	PluginInvocations *prometheus.CounterVec
	PluginDuration    *prometheus.HistogramVec
	PluginsNotFound   *prometheus.CounterVec

	// Delivery metrics
	UpdatesDropped *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_tasks_started_total",
			Help: "Total number of analysis tasks started",
		}),
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotap_tasks_finished_total",
			Help: "Total number of analysis tasks that reached a terminal status",
		}, []string{"status"}),
		ActiveTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audiotap_active_tasks",
			Help: "Current number of tasks with a running executor",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiotap_task_duration_seconds",
			Help:    "Wall time from task start to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27 minutes
		}),

		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "audiotap_chunks_processed_total",
			Help: "Total number of chunks dispatched to plugins",
		}),
		PluginInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotap_plugin_invocations_total",
			Help: "Plugin invocations by plugin and outcome",
		}, []string{"plugin", "outcome"}),
		PluginDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiotap_plugin_duration_seconds",
			Help:    "Time spent inside a plugin for one chunk",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}, []string{"plugin"}),
		PluginsNotFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotap_plugin_not_found_total",
			Help: "Invocations skipped because the plugin is not registered",
		}, []string{"plugin"}),

		UpdatesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotap_updates_dropped_total",
			Help: "Updates discarded because an observer was not keeping up",
		}, []string{"sink"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotap_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiotap_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordTaskStarted increments started tasks and the active gauge.
func (m *Metrics) RecordTaskStarted() {
	if m == nil {
		return
	}
	m.TasksStarted.Inc()
	m.ActiveTasks.Inc()
}

// RecordTaskFinished records a terminal status and decrements the active gauge.
func (m *Metrics) RecordTaskFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TasksFinished.WithLabelValues(status).Inc()
	m.ActiveTasks.Dec()
	m.TaskDuration.Observe(elapsed.Seconds())
}

// RecordChunk increments the processed chunk counter.
func (m *Metrics) RecordChunk() {
	if m == nil {
		return
	}
	m.ChunksProcessed.Inc()
}

// RecordPlugin records one plugin invocation.
func (m *Metrics) RecordPlugin(plugin, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PluginInvocations.WithLabelValues(plugin, outcome).Inc()
	m.PluginDuration.WithLabelValues(plugin).Observe(elapsed.Seconds())
}

// RecordPluginNotFound counts an invocation of an unregistered plugin.
func (m *Metrics) RecordPluginNotFound(plugin string) {
	if m == nil {
		return
	}
	m.PluginsNotFound.WithLabelValues(plugin).Inc()
}

// RecordDropped counts an update discarded by sink.
func (m *Metrics) RecordDropped(sink string) {
	if m == nil {
		return
	}
	m.UpdatesDropped.WithLabelValues(sink).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}
