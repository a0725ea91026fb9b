package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordTaskStarted()
	m.RecordTaskStarted()
	m.RecordTaskFinished("completed", time.Second)
	m.RecordChunk()
	m.RecordPlugin("energy", OutcomeOK, time.Millisecond)
	m.RecordPlugin("energy", OutcomeError, time.Millisecond)
	m.RecordPluginNotFound("missing")
	m.RecordDropped("channel")
	m.RecordHTTPRequest("GET", "/status", "200", time.Millisecond)

	t.Run("tasks", func(t *testing.T) {
		if got := testutil.ToFloat64(m.TasksStarted); got != 2 {
			t.Errorf("tasks started = %v, want 2", got)
		}
		if got := testutil.ToFloat64(m.ActiveTasks); got != 1 {
			t.Errorf("active tasks = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.TasksFinished.WithLabelValues("completed")); got != 1 {
			t.Errorf("completed = %v, want 1", got)
		}
	})

	t.Run("plugins", func(t *testing.T) {
		if got := testutil.ToFloat64(m.PluginInvocations.WithLabelValues("energy", OutcomeError)); got != 1 {
			t.Errorf("energy errors = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.PluginsNotFound.WithLabelValues("missing")); got != 1 {
			t.Errorf("not found = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.ChunksProcessed); got != 1 {
			t.Errorf("chunks = %v, want 1", got)
		}
	})

	t.Run("registered", func(t *testing.T) {
		count, err := testutil.GatherAndCount(reg, "audiotap_updates_dropped_total", "audiotap_http_requests_total")
		if err != nil {
			t.Fatalf("GatherAndCount() error = %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 series, got %d", count)
		}
	})
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordTaskStarted()
	m.RecordTaskFinished("error", 0)
	m.RecordChunk()
	m.RecordPlugin("x", OutcomePanic, 0)
	m.RecordPluginNotFound("x")
	m.RecordDropped("x")
	m.RecordHTTPRequest("GET", "/", "200", 0)
}

func TestNilRegisterer(t *testing.T) {
	a := New(nil)
	b := New(nil)
	a.RecordChunk()
	b.RecordChunk()
	if testutil.ToFloat64(a.ChunksProcessed) != 1 {
		t.Error("unregistered metrics should still count")
	}
}
