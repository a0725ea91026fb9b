package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/audiotap/internal/shared"
)

const (
	DefaultSampleRate     = 44100
	DefaultChunkSize      = 1024
	DefaultPacingInterval = Interval(time.Second)
)

// ResourceKind discriminates [AudioResource].
type ResourceKind string

const (
	ResourceLocalFile ResourceKind = "local_file"
	ResourceURL       ResourceKind = "url"
)

// AudioResource names the audio to analyze: a local file (Path) or a remote URL (URL).
type AudioResource struct {
	Type ResourceKind `json:"type"`
	Path string       `json:"path,omitempty"`
	URL  string       `json:"url,omitempty"`
}

// LocalFile returns a local file resource.
func LocalFile(path string) AudioResource {
	return AudioResource{Type: ResourceLocalFile, Path: path}
}

// RemoteURL returns a URL resource.
func RemoteURL(url string) AudioResource {
	return AudioResource{Type: ResourceURL, URL: url}
}

// ParseResource interprets a bare string: anything with a scheme is a URL, everything else a local path.
func ParseResource(s string) AudioResource {
	if strings.Contains(s, "://") {
		return RemoteURL(s)
	}
	return LocalFile(s)
}

// Location returns the path or URL, whichever the kind uses.
func (r AudioResource) Location() string {
	if r.Type == ResourceURL {
		return r.URL
	}
	return r.Path
}

// Missing reports whether r names no audio at all. A resource of an unknown kind is never
// missing; it fails when decoded.
func (r AudioResource) Missing() bool {
	if r.Path != "" || r.URL != "" {
		return false
	}
	return r.Type == "" || r.Type == ResourceLocalFile || r.Type == ResourceURL
}

func (r AudioResource) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.Location())
}

// UnmarshalJSON accepts the tagged object form or a bare string.
func (r *AudioResource) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ParseResource(s)
		return nil
	}

	type plain AudioResource
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: audio_resource: %v", shared.ErrInvalidInput, err)
	}
	*r = AudioResource(p)
	return nil
}

// Interval is a pacing delay. On the wire it is a number of seconds or a Go duration string.
type Interval time.Duration

// Duration converts i to a [time.Duration].
func (i Interval) Duration() time.Duration {
	return time.Duration(i)
}

func (i Interval) String() string {
	return time.Duration(i).String()
}

// MarshalJSON encodes the interval as fractional seconds.
func (i Interval) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(time.Duration(i).Seconds(), 'f', -1, 64)), nil
}

// UnmarshalJSON decodes seconds (number) or a duration string such as "250ms".
func (i *Interval) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err == nil {
		*i = Interval(secs * float64(time.Second))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: pacing_interval must be seconds or a duration string", shared.ErrInvalidInput)
	}
	return i.UnmarshalText([]byte(s))
}

// UnmarshalText decodes a duration string, or a bare number of seconds.
func (i *Interval) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*i = Interval(secs * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: pacing_interval %q", shared.ErrInvalidInput, s)
	}
	*i = Interval(d)
	return nil
}

// PluginInvocation selects one plugin for every chunk; Params override the plugin's defaults.
type PluginInvocation struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// AnalysisConfig describes one task. Plugins order determines execution order within a chunk.
type AnalysisConfig struct {
	AudioResource  AudioResource      `json:"audio_resource"`
	SampleRate     int                `json:"sample_rate,omitempty"`
	ChunkSize      int                `json:"chunk_size,omitempty"`
	PacingInterval *Interval          `json:"pacing_interval,omitempty"`
	Plugins        []PluginInvocation `json:"plugins"`
}

// Defaults holds the values applied to fields an [AnalysisConfig] leaves unset.
type Defaults struct {
	SampleRate     int
	ChunkSize      int
	PacingInterval time.Duration
}

// StandardDefaults returns 44100 Hz, 1024-sample chunks and a one second pacing interval.
func StandardDefaults() Defaults {
	return Defaults{
		SampleRate:     DefaultSampleRate,
		ChunkSize:      DefaultChunkSize,
		PacingInterval: DefaultPacingInterval.Duration(),
	}
}

// Pacing returns the pacing interval, or zero when unset.
func (c AnalysisConfig) Pacing() time.Duration {
	if c.PacingInterval == nil {
		return 0
	}
	return c.PacingInterval.Duration()
}

// WithDefaults returns a deep copy of c with unset fields filled from d and plugin names trimmed.
//
// An explicit zero pacing interval is kept; only a missing one is defaulted.
func (c AnalysisConfig) WithDefaults(d Defaults) AnalysisConfig {
	out := c.Clone()
	for i := range out.Plugins {
		out.Plugins[i].Name = strings.TrimSpace(out.Plugins[i].Name)
	}
	if out.SampleRate == 0 {
		out.SampleRate = d.SampleRate
	}
	if out.ChunkSize == 0 {
		out.ChunkSize = d.ChunkSize
	}
	if out.PacingInterval == nil {
		p := Interval(d.PacingInterval)
		out.PacingInterval = &p
	}
	return out
}

// Validate rejects configurations that can never run.
//
// Unsupported resource kinds are not rejected here: they surface as a task error when decoding.
func (c AnalysisConfig) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("%w: sample_rate must not be negative", shared.ErrInvalidConfig)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", shared.ErrInvalidConfig)
	}
	if c.Pacing() < 0 {
		return fmt.Errorf("%w: pacing_interval must not be negative", shared.ErrInvalidConfig)
	}
	for i, inv := range c.Plugins {
		if strings.TrimSpace(inv.Name) == "" {
			return fmt.Errorf("%w: plugins[%d] has no name", shared.ErrInvalidConfig, i)
		}
	}
	return nil
}

// Clone deep-copies the plugin list and parameter maps.
func (c AnalysisConfig) Clone() AnalysisConfig {
	out := c
	if c.PacingInterval != nil {
		p := *c.PacingInterval
		out.PacingInterval = &p
	}
	if c.Plugins != nil {
		out.Plugins = make([]PluginInvocation, len(c.Plugins))
		for i, inv := range c.Plugins {
			out.Plugins[i] = PluginInvocation{Name: inv.Name}
			if inv.Params != nil {
				out.Plugins[i].Params = make(map[string]any, len(inv.Params))
				for k, v := range inv.Params {
					out.Plugins[i].Params[k] = v
				}
			}
		}
	}
	return out
}

// PluginNames lists the configured plugin names in invocation order.
func (c AnalysisConfig) PluginNames() []string {
	names := make([]string, len(c.Plugins))
	for i, inv := range c.Plugins {
		names[i] = inv.Name
	}
	return names
}
