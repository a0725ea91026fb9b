// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// analysisFlags are shared by analyze and tui.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "plugin",
			Aliases: []string{"p"},
			Usage:   "Plugin to run, repeatable; parameters as name:key=value,key=value",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Samples per chunk (default from config)",
		},
		&cli.IntFlag{
			Name:  "sample-rate",
			Usage: "Resample audio to this rate in Hz (default from config)",
		},
		&cli.DurationFlag{
			Name:  "pacing",
			Usage: "Delay between chunks, e.g. 250ms or 0 (default from config)",
		},
	}
}

// setupCommand writes a config file and initializes the report archive.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the report archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// serveCommand runs the HTTP and websocket API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the analysis HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default from config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default from config)",
			},
		},
		Action: r.Serve,
	}
}

// analyzeCommand runs analyses in the foreground.
func analyzeCommand(r *Runner) *cli.Command {
	flags := append(analysisFlags(),
		&cli.StringFlag{
			Name:    "job",
			Aliases: []string{"j"},
			Usage:   "YAML job file describing resources and plugins",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: json, csv, markdown, html",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Report file (single resource) or directory (several resources)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent tasks when analyzing several resources",
			Value: 4,
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Do not print per-chunk updates",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the final report as JSON",
		},
		&cli.BoolFlag{
			Name:  "open",
			Usage: "Open an HTML report in the browser when done",
		},
	)

	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"run"},
		Usage:     "Analyze audio files or URLs",
		ArgsUsage: "<file-or-url>...",
		Flags:     flags,
		Action:    r.Analyze,
	}
}

// pluginsCommand lists registered plugins.
func pluginsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "List available analysis plugins",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Plugins,
	}
}

// reportsCommand reads the report archive.
func reportsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Browse archived reports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived reports, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only reports with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of reports",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ReportsList,
			},
			{
				Name:  "show",
				Usage: "Render one archived report",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: json, csv, markdown, html",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.ReportsShow,
			},
			{
				Name:  "prune",
				Usage: "Delete reports archived before a cutoff",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age cutoff",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: r.ReportsPrune,
			},
		},
	}
}

// generateCommand writes synthetic test audio.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Write a sine tone WAV file for testing",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  "freq",
				Usage: "Tone frequency in Hz",
				Value: 440,
			},
			&cli.FloatFlag{
				Name:  "amplitude",
				Usage: "Peak amplitude between 0 and 1",
				Value: 0.5,
			},
			&cli.FloatFlag{
				Name:  "seconds",
				Usage: "Duration",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "rate",
				Usage: "Sample rate in Hz",
				Value: 44100,
			},
			&cli.FloatFlag{
				Name:  "silence",
				Usage: "Seconds of silence appended after the tone",
			},
		},
		Action: r.Generate,
	}
}

// tuiCommand returns the top-level TUI command for interactive analysis.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Pick plugins and follow an analysis interactively",
		ArgsUsage: "<file-or-url>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "resource"},
		},
		Flags:  analysisFlags(),
		Action: r.TUI,
	}
}
