package tasks

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
)

func TestTaskFinish(t *testing.T) {
	tests := []struct {
		name   string
		cancel bool
		status models.Status
		want   models.Status
	}{
		{"completion without cancel", false, models.StatusCompleted, models.StatusCompleted},
		{"completion after cancel is stopped", true, models.StatusCompleted, models.StatusStopped},
		{"error after cancel stays error", true, models.StatusError, models.StatusError},
		{"stop after cancel", true, models.StatusStopped, models.StatusStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTask("t", config(4, 0))
			if !tk.begin(1) {
				t.Fatal("begin refused")
			}
			if tt.cancel && !tk.requestCancel() {
				t.Fatal("requestCancel refused")
			}

			got, ok := tk.finish(tt.status, "")
			if !ok {
				t.Fatal("finish refused")
			}
			if got != tt.want {
				t.Errorf("finish returned %s, want %s", got, tt.want)
			}
			if s := tk.currentStatus(); s != tt.want {
				t.Errorf("stored status = %s, want %s", s, tt.want)
			}
		})
	}

	t.Run("finish twice is refused", func(t *testing.T) {
		tk := newTask("t", config(4, 0))
		tk.begin(1)
		tk.finish(models.StatusCompleted, "")

		got, ok := tk.finish(models.StatusStopped, "")
		if ok {
			t.Fatal("second finish accepted")
		}
		if got != models.StatusCompleted {
			t.Errorf("got %s, want the stored completed status", got)
		}
	})
}

// A stop granted after the executor's last cancel check must still end as stopped.
func TestExecutorFinishAfterLateStop(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := NewExecutor(nil, nil, quietLogger(), m)

	tk := newTask("late", config(4, 0))
	tk.begin(1)
	if !tk.requestCancel() {
		t.Fatal("requestCancel refused")
	}

	var emitted []models.Update
	sink := SinkFunc(func(u models.Update) { emitted = append(emitted, u) })
	e.finish(quietLogger(), tk, sink, models.StatusCompleted, "", time.Now())

	if len(emitted) != 1 {
		t.Fatalf("emitted %d updates, want 1", len(emitted))
	}
	if emitted[0].Status != models.StatusStopped {
		t.Errorf("terminal update status = %s, want stopped", emitted[0].Status)
	}
	if r := tk.report(); r.Status != models.StatusStopped {
		t.Errorf("report status = %s, want stopped", r.Status)
	}
	if got := testutil.ToFloat64(m.TasksFinished.WithLabelValues("stopped")); got != 1 {
		t.Errorf("stopped counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TasksFinished.WithLabelValues("completed")); got != 0 {
		t.Errorf("completed counter = %v, want 0", got)
	}
}
