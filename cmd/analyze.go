package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/formatter"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
	"github.com/desertthunder/audiotap/internal/tasks"
)

const stopRetry = 50 * time.Millisecond

// analyzeOpts is the resolved form of the analyze flags and job file.
type analyzeOpts struct {
	configs   []models.AnalysisConfig
	format    formatter.Format
	formatSet bool
	output    string
	outputDir string
	workers   int
	rateLimit float64
	quiet     bool
	json      bool
	open      bool
}

// Analyze runs analyses in the foreground. One resource streams its updates; several run as a batch.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.analyzeOpts(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, release := r.newManager(nil)
	defer release()
	defer r.shutdown(ctx, manager)

	if len(opts.configs) == 1 {
		return r.analyzeOne(ctx, manager, opts)
	}
	return r.analyzeBatch(ctx, manager, opts)
}

// analyzeOpts merges the job file, positional resources and flags. Flags win over the job file.
func (r *Runner) analyzeOpts(cmd *cli.Command) (*analyzeOpts, error) {
	job := &Job{}
	if path := cmd.String("job"); path != "" {
		loaded, err := LoadJob(path)
		if err != nil {
			return nil, err
		}
		job = loaded
	}

	if args := cmd.Args().Slice(); len(args) > 0 {
		job.Resources = args
	}
	if len(job.Resources) == 0 {
		return nil, fmt.Errorf("%w: at least one file or URL is required", shared.ErrMissingArgument)
	}

	if err := applyAnalysisFlags(cmd, job); err != nil {
		return nil, err
	}
	if len(job.Plugins) == 0 {
		for _, name := range r.registry.Names() {
			job.Plugins = append(job.Plugins, JobPlugin{Name: name})
		}
	}
	if cmd.IsSet("workers") || job.Workers == 0 {
		job.Workers = int(cmd.Int("workers"))
	}

	configs, err := job.Configs()
	if err != nil {
		return nil, err
	}

	opts := &analyzeOpts{
		configs:   configs,
		format:    formatter.FormatJSON,
		outputDir: job.Output.Dir,
		workers:   job.Workers,
		rateLimit: job.RateLimit,
		quiet:     cmd.Bool("quiet"),
		json:      cmd.Bool("json"),
		open:      cmd.Bool("open"),
	}

	format := job.Output.Format
	if cmd.IsSet("format") {
		format = cmd.String("format")
	}
	if format != "" {
		if opts.format, err = formatter.ParseFormat(format); err != nil {
			return nil, err
		}
		opts.formatSet = true
	}
	if cmd.IsSet("output") {
		opts.output = cmd.String("output")
	}
	return opts, nil
}

// applyAnalysisFlags overlays the flags from [analysisFlags] onto job.
func applyAnalysisFlags(cmd *cli.Command, job *Job) error {
	if specs := cmd.StringSlice("plugin"); len(specs) > 0 {
		invocations, err := ParsePluginFlags(specs)
		if err != nil {
			return err
		}
		job.Plugins = job.Plugins[:0]
		for _, inv := range invocations {
			job.Plugins = append(job.Plugins, JobPlugin{Name: inv.Name, Params: inv.Params})
		}
	}
	if cmd.IsSet("chunk-size") {
		job.ChunkSize = int(cmd.Int("chunk-size"))
	}
	if cmd.IsSet("sample-rate") {
		job.SampleRate = int(cmd.Int("sample-rate"))
	}
	if cmd.IsSet("pacing") {
		pacing := cmd.Duration("pacing").String()
		job.PacingInterval = &pacing
	}
	return nil
}

// analyzeOne streams a single task to the terminal. The first interrupt requests a stop; the partial report is kept.
func (r *Runner) analyzeOne(ctx context.Context, manager *tasks.Manager, opts *analyzeOpts) error {
	sink := tasks.NewChannelSink(r.config.Analysis.UpdateBuffer, nil)
	cfg := opts.configs[0]

	id, err := manager.Start(cfg, sink)
	if err != nil {
		return err
	}
	done, _ := manager.Done(id)
	r.logger.Info("analysis started", "task_id", id, "resource", cfg.AudioResource.Location())

	var retry <-chan time.Time
	interrupted := ctx.Done()
loop:
	for {
		select {
		case u := <-sink.Updates():
			r.printUpdate(u, opts.quiet)
			if u.Terminal() {
				break loop
			}
		case <-done:
			r.drain(sink, opts.quiet)
			break loop
		case <-interrupted:
			interrupted = nil
			r.logger.Warn("interrupt received, stopping analysis", "task_id", id)
			if !manager.Stop(id) {
				ticker := time.NewTicker(stopRetry)
				defer ticker.Stop()
				retry = ticker.C
			}
		case <-retry:
			if manager.Stop(id) {
				retry = nil
			}
		}
	}

	report, err := manager.Wait(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	if dropped := sink.Dropped(); dropped > 0 {
		r.logger.Warn("some progress updates were dropped", "count", dropped)
	}

	if opts.json {
		if err := r.writeJSON(report, true); err != nil {
			return err
		}
	} else {
		r.printReport(report)
	}

	if opts.formatSet || opts.output != "" || opts.outputDir != "" {
		path := opts.output
		if path == "" && opts.outputDir != "" {
			path = filepath.Join(opts.outputDir, "report_"+report.TaskID+opts.format.Extension())
		}
		path, err := formatter.WriteReport(report, opts.format, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
		if !opts.json {
			r.writePlain("Report written to %s\n", path)
		}
		if opts.open && opts.format == formatter.FormatHTML {
			if err := shared.OpenReport(path); err != nil {
				r.logger.Warn("failed to open report", "err", err)
			}
		}
	}

	if report.Status == models.StatusError {
		return fmt.Errorf("analysis failed: %s", report.Error)
	}
	return nil
}

// drain prints updates still buffered after the task finished.
func (r *Runner) drain(sink *tasks.ChannelSink, quiet bool) {
	for {
		select {
		case u := <-sink.Updates():
			r.printUpdate(u, quiet)
		default:
			return
		}
	}
}

func (r *Runner) printUpdate(u models.Update, quiet bool) {
	if quiet {
		return
	}
	if u.Terminal() {
		if u.Error != "" {
			r.writePlain("%s: %s\n", u.Status, u.Error)
		}
		return
	}

	parts := make([]string, 0, len(u.Results))
	for _, name := range u.Results.Plugins() {
		parts = append(parts, fmt.Sprintf("%s{%s}", name, formatter.FormatValues(u.Results[name])))
	}
	r.writePlain("[%d/%d] %s\n", u.Chunk+1, u.Total, strings.Join(parts, " "))
}

func (r *Runner) printReport(report models.Report) {
	r.writePlainHeader(fmt.Sprintf("Task %s", report.TaskID))
	r.writePlain("Resource: %s\n", report.Config.AudioResource.Location())
	r.writePlain("Status:   %s\n", report.Status)
	r.writePlain("Chunks:   %d/%d\n", len(report.Results), report.TotalChunks)
	if d := report.Duration(); d > 0 {
		r.writePlain("Duration: %s\n", d.Round(time.Millisecond))
	}
	if report.Error != "" {
		r.writePlain("Error:    %s\n", report.Error)
	}

	stats := formatter.Summarize(report)
	if len(stats) == 0 {
		return
	}
	r.writePlainln("Plugins:")
	for _, s := range stats {
		r.writePlain("  %-20s chunks=%d errors=%d", s.Name, s.Chunks, s.Errors)
		for _, key := range slices.Sorted(maps.Keys(s.Means)) {
			r.writePlain(" %s=%s", key, formatter.FormatValue(s.Means[key]))
		}
		r.writePlain("\n")
	}
}

// analyzeBatch runs several resources through the batch worker pool and prints the manifest.
func (r *Runner) analyzeBatch(ctx context.Context, manager *tasks.Manager, opts *analyzeOpts) error {
	dir := opts.output
	if dir == "" {
		dir = opts.outputDir
	}
	batch := tasks.BatchOpts{
		Format:     opts.format,
		OutputDir:  dir,
		NumWorkers: opts.workers,
		RateLimit:  opts.rateLimit,
	}

	var sink tasks.Sink = tasks.NopSink{}
	if !opts.quiet {
		sink = tasks.SinkFunc(func(u models.Update) {
			if u.Terminal() {
				r.logger.Info("task finished", "task_id", u.TaskID, "status", u.Status)
			}
		})
	}

	r.logger.Info("starting batch", "resources", len(opts.configs), "workers", batch.NumWorkers)
	manifest, err := manager.RunBatch(ctx, opts.configs, sink, batch)
	if manifest == nil {
		return err
	}
	if err != nil {
		r.logger.Warn("batch interrupted", "err", err)
	}

	if opts.json {
		return r.writeJSON(manifest, true)
	}

	r.writePlainHeader("Batch complete")
	r.writePlain("Tasks:     %d (%d completed, %d failed)\n", manifest.TotalTasks, manifest.Completed, manifest.Failed)
	r.writePlain("Directory: %s\n", manifest.OutputDirectory)
	r.writePlain("Manifest:  %s\n", filepath.Join(manifest.OutputDirectory, "manifest.json"))
	for _, item := range manifest.Items {
		line := fmt.Sprintf("  %-10s %s (%d chunks)", item.Status, item.Resource, item.Chunks)
		if item.Error != "" {
			line += ": " + item.Error
		}
		r.writePlain("%s\n", line)
	}
	return nil
}
