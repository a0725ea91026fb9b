package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/formatter"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/repositories"
	"github.com/desertthunder/audiotap/internal/shared"
)

// reportRepository opens the archive or fails when archiving is disabled.
func (r *Runner) reportRepository() (*repositories.ReportRepository, func(), error) {
	db, repo, err := r.openArchive()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report archive: %w", err)
	}
	if repo == nil {
		return nil, nil, fmt.Errorf("%w: database.archive is disabled", shared.ErrMissingConfig)
	}
	return repo, func() { db.Close() }, nil
}

// ReportsList prints archived reports, newest first.
func (r *Runner) ReportsList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.reportRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	opts := repositories.ListOpts{Limit: int(cmd.Int("limit"))}
	if s := cmd.String("status"); s != "" {
		opts.Status = models.Status(s)
	}

	reports, err := repo.List(ctx, opts)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(reports, true)
	}

	if len(reports) == 0 {
		r.writePlain("No archived reports\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Archived reports (%d)", len(reports)))
	for _, rep := range reports {
		r.writePlain("%-36s  %-10s %5d chunks  %s  %s\n",
			rep.TaskID, rep.Status, rep.Chunks, rep.ArchivedAt.Local().Format(time.DateTime), rep.Resource)
		if rep.Error != "" {
			r.writePlain("  error: %s\n", rep.Error)
		}
	}
	return nil
}

// ReportsShow renders one archived report to stdout or a file.
func (r *Runner) ReportsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: report id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	repo, closeDB, err := r.reportRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteReport(report, format, out)
		if err != nil {
			return err
		}
		r.writePlain("Report written to %s\n", path)
		return nil
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// ReportsPrune deletes reports archived before the cutoff.
func (r *Runner) ReportsPrune(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidFlag)
	}

	repo, closeDB, err := r.reportRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	cutoff := time.Now().Add(-age)
	n, err := repo.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	r.logger.Info("pruned archived reports", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	r.writePlain("Deleted %d report(s) archived before %s\n", n, cutoff.Local().Format(time.DateTime))
	return nil
}
