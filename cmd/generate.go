package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/audio"
	"github.com/desertthunder/audiotap/internal/shared"
)

// Generate writes a sine tone, optionally followed by silence, as a mono 16-bit WAV file.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}

	freq := cmd.Float("freq")
	amplitude := cmd.Float("amplitude")
	seconds := cmd.Float("seconds")
	rate := int(cmd.Int("rate"))
	silence := cmd.Float("silence")

	switch {
	case freq <= 0:
		return fmt.Errorf("%w: --freq must be positive", shared.ErrInvalidFlag)
	case amplitude < 0 || amplitude > 1:
		return fmt.Errorf("%w: --amplitude must be between 0 and 1", shared.ErrInvalidFlag)
	case seconds <= 0 || silence < 0:
		return fmt.Errorf("%w: durations must be positive", shared.ErrInvalidFlag)
	case rate <= 0:
		return fmt.Errorf("%w: --rate must be positive", shared.ErrInvalidFlag)
	}

	samples := audio.Tone(freq, amplitude, seconds, rate)
	samples = append(samples, make([]float64, int(silence*float64(rate)))...)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	if err := audio.WriteWAV(f, samples, rate); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write WAV file: %w", err)
	}

	r.logger.Debug("generated tone", "path", path, "samples", len(samples), "rate", rate)
	r.writePlain("Wrote %s (%d samples at %d Hz)\n", path, len(samples), rate)
	return nil
}
