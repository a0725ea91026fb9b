package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/audio"
	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/plugins"
	"github.com/desertthunder/audiotap/internal/repositories"
	"github.com/desertthunder/audiotap/internal/shared"
	"github.com/desertthunder/audiotap/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	registry   *plugins.Registry
	decoder    audio.Decoder
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Registry   *plugins.Registry
	Decoder    audio.Decoder // defaults to a WAV decoder built from Config.Fetch
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Registry == nil {
		opts.Registry = plugins.Builtin()
	}
	if opts.Decoder == nil {
		opts.Decoder = audio.NewResourceDecoder(opts.Config.Fetch, opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		registry:   opts.Registry,
		decoder:    opts.Decoder,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger, e.g. to keep log lines off a TUI screen.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, analyzeCommand, pluginsCommand, reportsCommand, generateCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// defaults converts the [analysis] config section.
func (r *Runner) defaults() models.Defaults {
	d := models.StandardDefaults()
	if r.config.Analysis.SampleRate > 0 {
		d.SampleRate = r.config.Analysis.SampleRate
	}
	if r.config.Analysis.ChunkSize > 0 {
		d.ChunkSize = r.config.Analysis.ChunkSize
	}
	if r.config.Analysis.PacingInterval >= 0 {
		d.PacingInterval = r.config.Analysis.PacingInterval
	}
	return d
}

// openArchive opens the report archive, or returns nil when archiving is disabled.
func (r *Runner) openArchive() (*sql.DB, *repositories.ReportRepository, error) {
	if !r.config.Database.Archive {
		return nil, nil, nil
	}
	db, err := shared.OpenArchive(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewReportRepository(db), nil
}

// newManager builds a task manager wired to the archive when enabled. The returned func releases the archive.
//
// An archive that cannot be opened is logged and skipped; analysis does not depend on it.
func (r *Runner) newManager(m *metrics.Metrics) (*tasks.Manager, func()) {
	opts := []tasks.Option{
		tasks.WithLogger(r.logger),
		tasks.WithDefaults(r.defaults()),
		tasks.WithMetrics(m),
	}

	db, repo, err := r.openArchive()
	if err != nil {
		r.logger.Warn("report archive unavailable, continuing without it", "path", r.config.Database.Path, "err", err)
	}
	if repo != nil {
		opts = append(opts, tasks.WithArchiver(repo))
	}

	manager := tasks.NewManager(r.registry, r.decoder, opts...)
	return manager, func() {
		if db != nil {
			db.Close()
		}
	}
}

// shutdown waits for in-flight tasks so their reports are archived before exit.
func (r *Runner) shutdown(ctx context.Context, manager *tasks.Manager) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		r.logger.Warn("task manager did not stop cleanly", "err", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
