package ui

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/plugins"
	"github.com/desertthunder/audiotap/internal/tasks"
	tu "github.com/desertthunder/audiotap/internal/testing"
)

func newTestModel(t *testing.T, samples int, preselect ...string) (*Model, *tasks.Manager) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	mgr := tasks.NewManager(plugins.Builtin(), &tu.StaticDecoder{Samples: tu.Ramp(samples)}, tasks.WithLogger(logger))
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })

	zero := models.Interval(0)
	base := models.AnalysisConfig{
		AudioResource:  models.LocalFile("tone.wav"),
		ChunkSize:      4,
		PacingInterval: &zero,
	}
	for _, name := range preselect {
		base.Plugins = append(base.Plugins, models.PluginInvocation{Name: name, Params: map[string]any{"threshold_db": -20.0}})
	}

	m := NewModel(context.Background(), mgr, base, 0)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, mgr
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain runs cmd and feeds its messages back into the model until no command is left.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 100 {
			t.Fatal("command chain did not settle")
		}
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func TestPluginSelection(t *testing.T) {
	m, _ := newTestModel(t, 8, "noise_level_detection")

	if got := m.selection(); len(got) != 1 || got[0] != "noise_level_detection" {
		t.Fatalf("preselected = %v", got)
	}

	// first item in name order is energy
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if got := m.selection(); len(got) != 2 || got[0] != "energy" {
		t.Errorf("selection after toggle = %v", got)
	}
	if !strings.Contains(m.View(), "[x] energy") {
		t.Error("expected checked energy in view")
	}

	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if got := m.selection(); len(got) != 1 {
		t.Errorf("selection after second toggle = %v", got)
	}
}

func TestEnterSelectsCurrentWhenNothingChecked(t *testing.T) {
	m, _ := newTestModel(t, 8)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != ConfirmView {
		t.Fatalf("view = %v, want confirm", m.view)
	}
	if len(m.selected) != 1 || m.selected[0] != "energy" {
		t.Errorf("selected = %v", m.selected)
	}

	m.Update(keyRunes("n"))
	if m.view != PluginListView {
		t.Errorf("n should go back, view = %v", m.view)
	}
}

func TestRunToResult(t *testing.T) {
	m, mgr := newTestModel(t, 10, "noise_level_detection")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if cfg := m.config(); cfg.Plugins[0].Params["threshold_db"] != -20.0 {
		t.Errorf("params from the base config were lost: %+v", cfg.Plugins)
	}
	if !strings.Contains(m.View(), "noise_level_detection") {
		t.Error("confirm view should list the selected plugins")
	}

	_, cmd := m.Update(keyRunes("y"))
	drain(t, m, cmd)

	if m.view != ResultView {
		t.Fatalf("view = %v, want result", m.view)
	}
	r := m.Report()
	if r == nil || r.Status != models.StatusCompleted || len(r.Results) != 3 {
		t.Fatalf("unexpected report %+v", r)
	}
	if s, _ := mgr.Status(m.taskID); s != models.StatusCompleted {
		t.Errorf("manager status = %s", s)
	}

	view := m.View()
	for _, want := range []string{"completed", "noise_level_detection", "3 chunks"} {
		if !strings.Contains(view, want) {
			t.Errorf("result view missing %q:\n%s", want, view)
		}
	}

	m.Update(keyRunes("r"))
	if m.view != PluginListView || m.Report() != nil {
		t.Error("restart should return to the plugin list")
	}
}

func TestSaveReport(t *testing.T) {
	t.Chdir(t.TempDir())
	m, _ := newTestModel(t, 8, "energy")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := m.Update(keyRunes("y"))
	drain(t, m, cmd)

	_, cmd = m.Update(keyRunes("w"))
	drain(t, m, cmd)

	if m.err != nil {
		t.Fatalf("save failed: %v", m.err)
	}
	tu.AssertFileExists(t, m.saved)
	if !strings.Contains(m.View(), "Report written to") {
		t.Error("expected saved path in view")
	}
}

func TestStartError(t *testing.T) {
	m, mgr := newTestModel(t, 8, "energy")
	mgr.Shutdown(context.Background())

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := m.Update(keyRunes("y"))
	drain(t, m, cmd)

	if m.view != ConfirmView || m.err == nil {
		t.Fatalf("expected start error on confirm view, view=%v err=%v", m.view, m.err)
	}
	if !strings.Contains(m.View(), "Error") {
		t.Error("expected error in confirm view")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total int
		filled      int
	}{
		{0, 10, 0},
		{5, 10, 5},
		{10, 10, 10},
		{12, 10, 10},
	}
	for _, tt := range tests {
		bar := progressBar(tt.done, tt.total, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("progressBar(%d, %d) filled = %d, want %d", tt.done, tt.total, got, tt.filled)
		}
	}
	if progressBar(1, 0, 10) != "" {
		t.Error("expected empty bar for zero total")
	}
}
