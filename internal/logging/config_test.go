package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) = %v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("unknown level should not parse")
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("empty level should not override")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogBypass, "1")
	t.Setenv(EnvLogNoColor, "nope")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || cfg.Timestamp || !cfg.Bypass {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.NoColor {
		t.Fatalf("invalid bool should leave NoColor unset")
	}
}

func TestNewBypassWritesJSON(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, Config{Level: zerolog.InfoLevel, Bypass: true})
	logger.Debug().Msg("hidden")
	logger.Info().Str("frame", "heartbeat").Msg("seen")

	line := out.String()
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line written at info level: %s", line)
	}
	if !strings.Contains(line, `"frame":"heartbeat"`) {
		t.Fatalf("expected json fields, got %s", line)
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.log")
	var console bytes.Buffer
	logger := New(&console, Config{Level: zerolog.InfoLevel, NoColor: true, File: FileConfig{Path: path, MaxSizeMB: 1}})
	logger.Info().Uint8("type", 8).Msg("heartbeat")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"type":8`) {
		t.Fatalf("expected json line in file, got %s", raw)
	}
	if !strings.Contains(console.String(), "heartbeat") {
		t.Fatalf("console missed the line: %s", console.String())
	}
}

func TestEnvLogFile(t *testing.T) {
	t.Setenv(EnvLogFile, " /var/log/amqpwire.log ")
	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.File.Path != "/var/log/amqpwire.log" {
		t.Fatalf("file override got=%q", cfg.File.Path)
	}
}
