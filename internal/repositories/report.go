package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// ArchivedReport is a listing row for an archived report.
type ArchivedReport struct {
	models.Summary
	Sequence   int        `json:"sequence"`
	Error      string     `json:"error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ArchivedAt time.Time  `json:"archived_at"`
}

// ListOpts filters [ReportRepository.List]. Zero values mean no filter.
type ListOpts struct {
	Status models.Status
	Limit  int
}

// ReportRepository archives terminal task reports.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new ReportRepository with the given database connection
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Archive stores r. Archiving the same task again replaces its status, results and timestamps
// but keeps the original sequence number.
func (r *ReportRepository) Archive(ctx context.Context, report models.Report) error {
	if report.TaskID == "" {
		return fmt.Errorf("%w: report has no task id", shared.ErrInvalidInput)
	}

	configJSON, err := json.Marshal(report.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	results := report.Results
	if results == nil {
		results = []models.ChunkResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "reports")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO reports (
			id, sequence, status, resource, chunk_count, error_message,
			config_json, results_json, created_at, started_at, finished_at, archived_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			error_message = excluded.error_message,
			results_json = excluded.results_json,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			archived_at = excluded.archived_at
	`

	_, err = r.db.ExecContext(ctx, query,
		report.TaskID,
		sequence,
		string(report.Status),
		report.Config.AudioResource.Location(),
		len(results),
		nullString(report.Error),
		string(configJSON),
		string(resultsJSON),
		report.CreatedAt,
		nullTime(report.StartedAt),
		nullTime(report.FinishedAt),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// Get loads a full archived report. Unknown ids return [shared.ErrReportNotFound].
func (r *ReportRepository) Get(ctx context.Context, id string) (models.Report, error) {
	query := `
		SELECT id, status, error_message, config_json, results_json, created_at, started_at, finished_at
		FROM reports
		WHERE id = ?
	`

	var (
		report      models.Report
		status      string
		errMsg      sql.NullString
		configJSON  string
		resultsJSON string
		startedAt   sql.NullTime
		finishedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&report.TaskID, &status, &errMsg, &configJSON, &resultsJSON,
		&report.CreatedAt, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, fmt.Errorf("%w: %s", shared.ErrReportNotFound, id)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to get report: %w", err)
	}

	report.Status = models.Status(status)
	report.Error = errMsg.String
	report.StartedAt = timePtr(startedAt)
	report.FinishedAt = timePtr(finishedAt)

	if err := json.Unmarshal([]byte(configJSON), &report.Config); err != nil {
		return models.Report{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &report.Results); err != nil {
		return models.Report{}, fmt.Errorf("failed to decode results: %w", err)
	}
	report.TotalChunks = len(report.Results)
	return report, nil
}

// List returns archived reports, newest first.
func (r *ReportRepository) List(ctx context.Context, opts ListOpts) ([]ArchivedReport, error) {
	query := `
		SELECT id, sequence, status, resource, chunk_count, error_message, created_at, finished_at, archived_at
		FROM reports
	`
	var args []any
	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(opts.Status))
	}
	query += " ORDER BY sequence DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []ArchivedReport{}
	for rows.Next() {
		var (
			a          ArchivedReport
			status     string
			errMsg     sql.NullString
			finishedAt sql.NullTime
		)
		if err := rows.Scan(
			&a.TaskID, &a.Sequence, &status, &a.Resource, &a.Chunks, &errMsg,
			&a.CreatedAt, &finishedAt, &a.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		a.Status = models.Status(status)
		a.Error = errMsg.String
		a.FinishedAt = timePtr(finishedAt)
		reports = append(reports, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// Delete removes one archived report.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrReportNotFound, id)
	}
	return nil
}

// Prune deletes reports archived before cutoff and returns how many were removed.
func (r *ReportRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reports WHERE archived_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune reports: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
