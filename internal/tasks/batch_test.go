package tasks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/desertthunder/audiotap/internal/formatter"
	"github.com/desertthunder/audiotap/internal/models"
	tu "github.com/desertthunder/audiotap/internal/testing"
)

func TestRunBatch(t *testing.T) {
	m := newTestManager(&tu.StaticDecoder{Samples: tu.Ramp(10)})
	dir := filepath.Join(t.TempDir(), "out")
	sink := &tu.RecordingSink{}

	configs := []models.AnalysisConfig{
		config(4, 0, "first"),
		config(-1, 0, "first"),
		config(5, 0, "a"),
	}

	manifest, err := m.RunBatch(context.Background(), configs, sink, BatchOpts{
		Format:     formatter.FormatCSV,
		OutputDir:  dir,
		NumWorkers: 2,
		RateLimit:  100,
	})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if manifest.TotalTasks != 3 || manifest.Completed != 2 || manifest.Failed != 1 {
		t.Errorf("unexpected counts: %+v", manifest)
	}

	items := manifest.Items
	if items[0].Status != models.StatusCompleted || items[0].Chunks != 3 {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].Status != models.StatusError || items[1].TaskID != "" || items[1].Error == "" {
		t.Errorf("invalid config should be recorded as an error item, got %+v", items[1])
	}
	if items[2].Chunks != 2 || filepath.Ext(items[2].File) != ".csv" {
		t.Errorf("item 2 = %+v", items[2])
	}

	tu.AssertFileExists(t, items[0].File)
	tu.AssertFileExists(t, filepath.Join(dir, "manifest.json"))

	if got := len(sink.Terminal()); got != 2 {
		t.Errorf("expected 2 terminal updates, got %d", got)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	m := newTestManager(&tu.StaticDecoder{Samples: tu.Ramp(10)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manifest, err := m.RunBatch(ctx, []models.AnalysisConfig{config(4, 0, "a")}, nil, BatchOpts{OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected context error")
	}
	if manifest.Completed != 0 || manifest.Failed != 1 {
		t.Errorf("unexpected manifest %+v", manifest)
	}
}
