package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/audiotap/internal/formatter"
	"github.com/desertthunder/audiotap/internal/models"
)

// BatchOpts contains configuration for batch analysis.
type BatchOpts struct {
	Format     formatter.Format // Report format (default: json)
	OutputDir  string           // Report directory (default: audiotap_batch_{epoch})
	NumWorkers int              // Concurrent tasks (default: 4, max: 16)
	RateLimit  float64          // Task starts per second (default: 5)
}

type batchJob struct {
	index  int
	config models.AnalysisConfig
}

// RunBatch analyzes every config with a worker pool, writing one report per task and a manifest.
//
// Each worker starts a task, waits for it and writes its report. Invalid configs and failed tasks
// are recorded in the manifest rather than aborting the batch. Cancelling ctx stops running tasks.
func (m *Manager) RunBatch(ctx context.Context, configs []models.AnalysisConfig, sink Sink, opts BatchOpts) (*models.BatchManifest, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("audiotap_batch_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 16 {
		opts.NumWorkers = 16
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := &models.BatchManifest{
		Format:          string(opts.Format),
		OutputDirectory: opts.OutputDir,
		TotalTasks:      len(configs),
		StartedAt:       time.Now(),
		Items:           make([]models.BatchItem, len(configs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan batchJob, len(configs))
	for i, cfg := range configs {
		jobs <- batchJob{index: i, config: cfg}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				manifest.Items[job.index] = m.runBatchJob(ctx, limiter, job, sink, opts)
			}
		}()
	}
	wg.Wait()

	for _, item := range manifest.Items {
		if item.Status == models.StatusCompleted {
			manifest.Completed++
		} else {
			manifest.Failed++
		}
	}
	manifest.FinishedAt = time.Now()

	manifestPath := filepath.Join(opts.OutputDir, "manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return manifest, fmt.Errorf("batch completed but failed to write manifest: %w", err)
	}
	return manifest, ctx.Err()
}

func (m *Manager) runBatchJob(ctx context.Context, limiter *rate.Limiter, job batchJob, sink Sink, opts BatchOpts) models.BatchItem {
	item := models.BatchItem{Resource: job.config.AudioResource.Location(), Status: models.StatusError}

	if err := limiter.Wait(ctx); err != nil {
		item.Error = err.Error()
		return item
	}

	id, err := m.Start(job.config, sink)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.TaskID = id

	done, _ := m.Done(id)
	select {
	case <-done:
	case <-ctx.Done():
		m.stopAndWait(id, done)
	}

	report, _ := m.Report(id)
	item.Status = report.Status
	item.Chunks = len(report.Results)
	item.Error = report.Error

	path := filepath.Join(opts.OutputDir, "report_"+id+opts.Format.Extension())
	if _, err := formatter.WriteReport(report, opts.Format, path); err != nil {
		item.Error = err.Error()
		return item
	}
	item.File = path
	return item
}

// stopAndWait retries Stop until the task leaves pending, then waits for it to finish.
func (m *Manager) stopAndWait(id string, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !m.Stop(id) {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
	<-done
}
