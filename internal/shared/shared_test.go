package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Fatal("expected unique ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("GenerateID() returned invalid uuid %q: %v", a, err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		want    log.Level
		wantErr bool
	}{
		{name: "empty defaults to info", input: "", want: log.InfoLevel},
		{name: "debug", input: "debug", want: log.DebugLevel},
		{name: "warn", input: "warn", want: log.WarnLevel},
		{name: "unknown", input: "chatty", want: log.InfoLevel, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "task_id", "abc")
		logger.Info("chunk processed")

		if !strings.Contains(buf.String(), "task_id=abc") {
			t.Errorf("expected child logger fields in output, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "audiotap.log")
		logger, err := NewFileLogger(path, LoggingConfig{MaxSizeMB: 1})
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Info("hello")

		if _, err := NewFileLogger(""); err == nil {
			t.Error("expected error for empty path")
		}
	})
}

func TestMarshalJSON(t *testing.T) {
	compact, err := MarshalJSON(map[string]int{"a": 1}, false)
	if err != nil || string(compact) != `{"a":1}` {
		t.Errorf("MarshalJSON(compact) = %s, %v", compact, err)
	}

	pretty, err := MarshalJSON(map[string]int{"a": 1}, true)
	if err != nil || !strings.Contains(string(pretty), "\n  \"a\": 1") {
		t.Errorf("MarshalJSON(pretty) = %s, %v", pretty, err)
	}
}

func TestBrowserCommand(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		if _, err := browserCommand(goos, "file:///tmp/r.html"); err != nil {
			t.Errorf("browserCommand(%s) error = %v", goos, err)
		}
	}
	if _, err := browserCommand("plan9", "file:///tmp/r.html"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}
