package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./audiotap.db" {
			t.Errorf("expected database path ./audiotap.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Analysis.SampleRate != 44100 {
			t.Errorf("expected sample rate 44100, got %d", config.Analysis.SampleRate)
		}

		if config.Analysis.ChunkSize != 1024 {
			t.Errorf("expected chunk size 1024, got %d", config.Analysis.ChunkSize)
		}

		if config.Analysis.PacingInterval != time.Second {
			t.Errorf("expected pacing interval 1s, got %v", config.Analysis.PacingInterval)
		}

		if config.Fetch.Timeout != 30*time.Second {
			t.Errorf("expected fetch timeout 30s, got %v", config.Fetch.Timeout)
		}

		if config.Redis.Enabled {
			t.Error("redis fan-out should be disabled by default")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 9090

[analysis]
chunk_size = 2048
pacing_interval = "250ms"

[redis]
enabled = true
addr = "redis:6379"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Addr() != "0.0.0.0:9090" {
			t.Errorf("expected addr 0.0.0.0:9090, got %s", config.Server.Addr())
		}

		if config.Analysis.ChunkSize != 2048 {
			t.Errorf("expected chunk size 2048, got %d", config.Analysis.ChunkSize)
		}

		if config.Analysis.PacingInterval != 250*time.Millisecond {
			t.Errorf("expected pacing 250ms, got %v", config.Analysis.PacingInterval)
		}

		if config.Analysis.SampleRate != 44100 {
			t.Errorf("missing keys should keep defaults, got sample rate %d", config.Analysis.SampleRate)
		}

		if !config.Redis.Enabled || config.Redis.Addr != "redis:6379" {
			t.Errorf("unexpected redis config: %+v", config.Redis)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("process environment", func(t *testing.T) {
		t.Setenv("AUDIOTAP_PORT", "7777")
		t.Setenv("AUDIOTAP_LOG_LEVEL", "debug")

		config := DefaultConfig()
		if err := ApplyEnv(config, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}

		if config.Server.Port != 7777 {
			t.Errorf("expected port 7777, got %d", config.Server.Port)
		}
		if config.Logging.Level != "debug" {
			t.Errorf("expected level debug, got %s", config.Logging.Level)
		}
	})

	t.Run("env file", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(envPath, []byte("AUDIOTAP_DB=/tmp/from-env.db\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("AUDIOTAP_DB") })

		config := DefaultConfig()
		if err := ApplyEnv(config, envPath); err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}

		if config.Database.Path != "/tmp/from-env.db" {
			t.Errorf("expected db path from env file, got %s", config.Database.Path)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Setenv("AUDIOTAP_PORT", "eighty")
		if err := ApplyEnv(DefaultConfig(), filepath.Join(t.TempDir(), "missing.env")); err == nil {
			t.Error("expected error for non-numeric port")
		}
	})
}
