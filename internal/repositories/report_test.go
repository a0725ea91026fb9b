package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testReport(id string, status models.Status) models.Report {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	finished := started.Add(2 * time.Second)
	pacing := models.Interval(250 * time.Millisecond)
	return models.Report{
		TaskID: id,
		Status: status,
		Config: models.AnalysisConfig{
			AudioResource:  models.RemoteURL("https://example.com/a.wav"),
			SampleRate:     16000,
			ChunkSize:      512,
			PacingInterval: &pacing,
			Plugins:        []models.PluginInvocation{{Name: "energy", Params: map[string]any{"k": 1.5}}},
		},
		Results: []models.ChunkResult{
			{"energy": {"energy": 0.25, "rms": 0.5}},
			{"energy": models.ErrorValues("boom")},
		},
		CreatedAt:  created,
		StartedAt:  &started,
		FinishedAt: &finished,
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "reports")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Archive and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewReportRepository(db)
		in := testReport("task-1", models.StatusCompleted)
		if err := repo.Archive(ctx, in); err != nil {
			t.Fatalf("failed to archive report: %v", err)
		}

		got, err := repo.Get(ctx, "task-1")
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}

		if got.Status != models.StatusCompleted || len(got.Results) != 2 {
			t.Errorf("unexpected report: %+v", got)
		}
		if got.Results[0]["energy"]["rms"] != 0.5 {
			t.Errorf("results not round-tripped: %v", got.Results[0])
		}
		if got.Results[1]["energy"].Error() != "boom" {
			t.Errorf("error entry not round-tripped: %v", got.Results[1])
		}
		if got.Config.AudioResource.URL != "https://example.com/a.wav" || got.Config.Pacing() != 250*time.Millisecond {
			t.Errorf("config not round-tripped: %+v", got.Config)
		}
		if got.Config.Plugins[0].Params["k"] != 1.5 {
			t.Errorf("plugin params not round-tripped: %v", got.Config.Plugins[0].Params)
		}
		if got.StartedAt == nil || !got.StartedAt.Equal(*in.StartedAt) {
			t.Errorf("started_at = %v, want %v", got.StartedAt, in.StartedAt)
		}
		if got.Duration() != 2*time.Second {
			t.Errorf("duration = %s, want 2s", got.Duration())
		}
	})

	t.Run("Archive error report without start time", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewReportRepository(db)
		in := testReport("task-err", models.StatusError)
		in.StartedAt = nil
		in.Results = nil
		in.Error = "unreadable"
		if err := repo.Archive(ctx, in); err != nil {
			t.Fatalf("failed to archive report: %v", err)
		}

		got, err := repo.Get(ctx, "task-err")
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if got.StartedAt != nil || got.Error != "unreadable" || len(got.Results) != 0 {
			t.Errorf("unexpected report: %+v", got)
		}
	})

	t.Run("Archive replaces existing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewReportRepository(db)
		if err := repo.Archive(ctx, testReport("task-1", models.StatusStopped)); err != nil {
			t.Fatalf("first archive failed: %v", err)
		}
		if err := repo.Archive(ctx, testReport("task-1", models.StatusCompleted)); err != nil {
			t.Fatalf("second archive failed: %v", err)
		}

		list, err := repo.List(ctx, ListOpts{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 || list[0].Status != models.StatusCompleted || list[0].Sequence != 1 {
			t.Errorf("unexpected list %+v", list)
		}
	})

	t.Run("Archive rejects missing id", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewReportRepository(db).Archive(ctx, models.Report{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get not found", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewReportRepository(db).Get(ctx, "nope"); !errors.Is(err, shared.ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
	})

	t.Run("List filters and orders", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewReportRepository(db)
		for _, r := range []models.Report{
			testReport("a", models.StatusCompleted),
			testReport("b", models.StatusError),
			testReport("c", models.StatusCompleted),
		} {
			if err := repo.Archive(ctx, r); err != nil {
				t.Fatalf("archive %s failed: %v", r.TaskID, err)
			}
		}

		all, err := repo.List(ctx, ListOpts{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 || all[0].TaskID != "c" || all[2].TaskID != "a" {
			t.Errorf("expected newest first, got %+v", all)
		}
		if all[0].Chunks != 2 || all[0].Resource != "https://example.com/a.wav" {
			t.Errorf("unexpected summary %+v", all[0])
		}

		completed, _ := repo.List(ctx, ListOpts{Status: models.StatusCompleted})
		if len(completed) != 2 {
			t.Errorf("expected 2 completed, got %d", len(completed))
		}

		limited, _ := repo.List(ctx, ListOpts{Limit: 1})
		if len(limited) != 1 || limited[0].TaskID != "c" {
			t.Errorf("unexpected limited list %+v", limited)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewReportRepository(db)
		if err := repo.Archive(ctx, testReport("a", models.StatusCompleted)); err != nil {
			t.Fatalf("archive failed: %v", err)
		}
		if err := repo.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := repo.Delete(ctx, "a"); !errors.Is(err, shared.ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound on second delete, got %v", err)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewReportRepository(db)
		if err := repo.Archive(ctx, testReport("a", models.StatusCompleted)); err != nil {
			t.Fatalf("archive failed: %v", err)
		}

		n, err := repo.Prune(ctx, time.Now().Add(-time.Hour))
		if err != nil || n != 0 {
			t.Errorf("Prune(past) = %d, %v; want 0", n, err)
		}
		n, err = repo.Prune(ctx, time.Now().Add(time.Hour))
		if err != nil || n != 1 {
			t.Errorf("Prune(future) = %d, %v; want 1", n, err)
		}
	})
}
