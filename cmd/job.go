package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// Job is a YAML analysis job: one plugin chain applied to every listed resource.
type Job struct {
	Resources      []string    `yaml:"resources"`
	SampleRate     int         `yaml:"sample_rate"`
	ChunkSize      int         `yaml:"chunk_size"`
	PacingInterval *string     `yaml:"pacing_interval"`
	Plugins        []JobPlugin `yaml:"plugins"`
	Output         JobOutput   `yaml:"output"`
	Workers        int         `yaml:"workers"`
	RateLimit      float64     `yaml:"rate_limit"`
}

// JobPlugin selects a plugin with optional parameter overrides.
type JobPlugin struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// JobOutput controls where reports are written.
type JobOutput struct {
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// LoadJob reads and parses a job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return ParseJob(data)
}

// ParseJob decodes YAML job data.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: job file: %v", shared.ErrInvalidInput, err)
	}
	return &job, nil
}

// Pacing parses pacing_interval. It returns nil when the key is absent.
func (j *Job) Pacing() (*models.Interval, error) {
	if j.PacingInterval == nil {
		return nil, nil
	}
	var iv models.Interval
	if err := iv.UnmarshalText([]byte(*j.PacingInterval)); err != nil {
		return nil, err
	}
	return &iv, nil
}

// Invocations converts the plugin list, preserving order.
func (j *Job) Invocations() []models.PluginInvocation {
	out := make([]models.PluginInvocation, 0, len(j.Plugins))
	for _, p := range j.Plugins {
		out = append(out, models.PluginInvocation{Name: p.Name, Params: p.Params})
	}
	return out
}

// Configs builds one analysis config per resource.
func (j *Job) Configs() ([]models.AnalysisConfig, error) {
	pacing, err := j.Pacing()
	if err != nil {
		return nil, err
	}

	configs := make([]models.AnalysisConfig, 0, len(j.Resources))
	for _, res := range j.Resources {
		configs = append(configs, models.AnalysisConfig{
			AudioResource:  models.ParseResource(res),
			SampleRate:     j.SampleRate,
			ChunkSize:      j.ChunkSize,
			PacingInterval: pacing,
			Plugins:        j.Invocations(),
		})
	}
	return configs, nil
}

// ParsePluginFlags parses --plugin values of the form name or name:key=value,key=value.
//
// Elements holding only key=value attach to the preceding plugin, so values split on commas
// by the flag parser still reassemble.
func ParsePluginFlags(values []string) ([]models.PluginInvocation, error) {
	var out []models.PluginInvocation
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, rest, hasParams := strings.Cut(raw, ":")
		if !hasParams && strings.Contains(raw, "=") {
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: parameter %q has no plugin", shared.ErrInvalidFlag, raw)
			}
			if err := parseParams(out[len(out)-1].Params, raw); err != nil {
				return nil, err
			}
			continue
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty plugin name in %q", shared.ErrInvalidFlag, raw)
		}
		inv := models.PluginInvocation{Name: name, Params: map[string]any{}}
		if hasParams {
			if err := parseParams(inv.Params, rest); err != nil {
				return nil, err
			}
		}
		out = append(out, inv)
	}

	for i := range out {
		if len(out[i].Params) == 0 {
			out[i].Params = nil
		}
	}
	return out, nil
}

func parseParams(into map[string]any, s string) error {
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("%w: plugin parameter %q is not key=value", shared.ErrInvalidFlag, pair)
		}
		into[key] = paramValue(strings.TrimSpace(value))
	}
	return nil
}

// paramValue keeps numbers and booleans typed the way a JSON request would deliver them.
func paramValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
