package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	if p, ok := os.LookupEnv("AUDIOTAP_CONFIG"); ok && p != "" {
		configPath = p
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	if err := shared.ApplyEnv(config); err != nil {
		logger.Fatalf("invalid environment: %v", err)
	}

	level, err := shared.ParseLogLevel(config.Logging.Level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", config.Logging.Level)
	}
	shared.SetLogLevel(logger, level)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "audiotap",
		Usage:    "Chunked audio analysis with pluggable analyzers",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
