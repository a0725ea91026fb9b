package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/shared"
	"github.com/desertthunder/audiotap/internal/ui"
)

// TUI launches the interactive terminal UI for picking plugins and following an analysis.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	resource := cmd.StringArg("resource")
	if resource == "" {
		return fmt.Errorf("%w: file or URL to analyze", shared.ErrMissingArgument)
	}

	job := &Job{Resources: []string{resource}}
	if err := applyAnalysisFlags(cmd, job); err != nil {
		return err
	}
	configs, err := job.Configs()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/audiotap-tui.log", r.config.Logging)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	manager, release := r.newManager(nil)
	defer release()
	defer r.shutdown(ctx, manager)

	model := ui.NewModel(ctx, manager, configs[0], r.config.Analysis.UpdateBuffer)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if report := model.Report(); report != nil {
		r.writePlain("Task %s finished with status %s (%d chunks)\n", report.TaskID, report.Status, len(report.Results))
	}
	return nil
}
