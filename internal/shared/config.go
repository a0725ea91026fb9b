package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Analysis AnalysisConfig `toml:"analysis"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Redis    RedisConfig    `toml:"redis"`
	Fetch    FetchConfig    `toml:"fetch"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"` // start requests per second, 0 disables
	Burst     int     `toml:"burst"`
}

// AnalysisConfig contains defaults applied to analysis requests that omit them.
type AnalysisConfig struct {
	SampleRate     int           `toml:"sample_rate"`
	ChunkSize      int           `toml:"chunk_size"`
	PacingInterval time.Duration `toml:"pacing_interval"`
	UpdateBuffer   int           `toml:"update_buffer"`
}

// DatabaseConfig contains report archive settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	Archive      bool   `toml:"archive"`
}

// LoggingConfig contains log level and optional rotated file output.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// RedisConfig contains the optional update fan-out channel.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

// FetchConfig bounds remote audio downloads.
type FetchConfig struct {
	Timeout  time.Duration `toml:"timeout"`
	MaxBytes int64         `toml:"max_bytes"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays AUDIOTAP_* environment variables onto the config.
//
// Variables in envFiles (default ".env") are loaded first but never replace variables already set in the process environment.
func ApplyEnv(c *Config, envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if v, ok := os.LookupEnv("AUDIOTAP_HOST"); ok {
		c.Server.Host = v
	}
	if v, ok := os.LookupEnv("AUDIOTAP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: AUDIOTAP_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v, ok := os.LookupEnv("AUDIOTAP_DB"); ok {
		c.Database.Path = v
	}
	if v, ok := os.LookupEnv("AUDIOTAP_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv("AUDIOTAP_REDIS_ADDR"); ok {
		c.Redis.Addr = v
		c.Redis.Enabled = v != ""
	}
	return nil
}
