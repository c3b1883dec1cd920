package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}

	if cfg.Replay.SourceFile != "logs_source.jsonl" {
		t.Errorf("source_file = %q", cfg.Replay.SourceFile)
	}
	if cfg.Replay.TargetFile != "fleet_health.log" {
		t.Errorf("target_file = %q", cfg.Replay.TargetFile)
	}
	if cfg.Replay.Interval != 2*time.Second {
		t.Errorf("interval = %s, want 2s", cfg.Replay.Interval)
	}
	if cfg.Monitor.Retention != 100 {
		t.Errorf("retention = %d, want 100", cfg.Monitor.Retention)
	}
	if !cfg.Analysis.Auto {
		t.Error("analysis.auto default should be true")
	}
	if cfg.Analysis.Cooldown != 10*time.Second {
		t.Errorf("cooldown = %s, want 10s", cfg.Analysis.Cooldown)
	}
	if cfg.Archive.Enabled {
		t.Error("archive should be disabled by default")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
replay:
  source_file: corpus.jsonl
  interval: 1s
  start_from_line: 7
monitor:
  retention: 50
analysis:
  auto: false
  cooldown: 30s
  mode: command
  command:
    program: crew-analyze
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Replay.SourceFile != "corpus.jsonl" || cfg.Replay.Interval != time.Second || cfg.Replay.StartFromLine != 7 {
		t.Errorf("replay config not applied: %+v", cfg.Replay)
	}
	if cfg.Monitor.Retention != 50 {
		t.Errorf("retention = %d, want 50", cfg.Monitor.Retention)
	}
	if cfg.Analysis.Auto || cfg.Analysis.Cooldown != 30*time.Second {
		t.Errorf("analysis config not applied: %+v", cfg.Analysis)
	}
	if !cfg.AnalyzerConfigured() {
		t.Error("AnalyzerConfigured() = false with a command program set")
	}
	// Untouched knobs keep their defaults.
	if cfg.Replay.TargetFile != "fleet_health.log" {
		t.Errorf("target_file = %q, want default", cfg.Replay.TargetFile)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"interval too small", "replay:\n  interval: 100ms\n"},
		{"interval too large", "replay:\n  interval: 30s\n"},
		{"negative start line", "replay:\n  start_from_line: -1\n"},
		{"zero retention", "monitor:\n  retention: 0\n"},
		{"unknown analysis mode", "analysis:\n  mode: psychic\n"},
		{"remote without url", "analysis:\n  mode: remote\n"},
		{"archive without uri", "archive:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted invalid config:\n%s", tt.content)
			}
		})
	}
}

func TestAnalyzerConfigured(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	// Default mode is command with no program: analysis disabled.
	if cfg.AnalyzerConfigured() {
		t.Error("AnalyzerConfigured() = true with no program configured")
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetwatch.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Replay.Interval != 2*time.Second || cfg.Monitor.Retention != 100 {
		t.Errorf("generated config drifted from defaults: %+v", cfg)
	}

	// Never clobber an existing file.
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault overwrote an existing config")
	}
}
