package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Replay interval bounds; values outside this range are rejected.
const (
	MinReplayInterval = 500 * time.Millisecond
	MaxReplayInterval = 10 * time.Second
)

// ReplayConfig holds replay engine settings.
type ReplayConfig struct {
	SourceFile    string        `mapstructure:"source_file"`
	TargetFile    string        `mapstructure:"target_file"`
	Interval      time.Duration `mapstructure:"interval"`
	StartFromLine int           `mapstructure:"start_from_line"`
	StateFile     string        `mapstructure:"state_file"`
}

// MonitorConfig holds tailer polling settings.
type MonitorConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Retention       int           `mapstructure:"retention"`
}

// CommandConfig holds settings for a local analysis program.
type CommandConfig struct {
	Program string        `mapstructure:"program"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RemoteConfig holds settings for an HTTP analysis service.
type RemoteConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	CACert     string        `mapstructure:"ca_cert"`
	ClientCert string        `mapstructure:"client_cert"`
	ClientKey  string        `mapstructure:"client_key"`
	ServerName string        `mapstructure:"server_name"`
}

// AnalysisConfig holds trigger gate and analysis boundary settings.
type AnalysisConfig struct {
	Auto      bool          `mapstructure:"auto"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
	Mode      string        `mapstructure:"mode"` // command or remote
	ReportDir string        `mapstructure:"report_dir"`
	Command   CommandConfig `mapstructure:"command"`
	Remote    RemoteConfig  `mapstructure:"remote"`
}

// ArchiveConfig holds settings for the MongoDB entry archive.
type ArchiveConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	TTLDays    int    `mapstructure:"ttl_days"`
}

// Config represents the complete pipeline configuration.
type Config struct {
	Replay    ReplayConfig   `mapstructure:"replay"`
	Monitor   MonitorConfig  `mapstructure:"monitor"`
	Analysis  AnalysisConfig `mapstructure:"analysis"`
	Archive   ArchiveConfig  `mapstructure:"archive"`
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
}

// Load reads the configuration from a file. An empty path yields a
// configuration with every knob at its default value.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("replay.source_file", "logs_source.jsonl")
	v.SetDefault("replay.target_file", "fleet_health.log")
	v.SetDefault("replay.interval", "2s")
	v.SetDefault("replay.start_from_line", 0)
	v.SetDefault("replay.state_file", "")
	v.SetDefault("monitor.refresh_interval", "2s")
	v.SetDefault("monitor.retention", 100)
	v.SetDefault("analysis.auto", true)
	v.SetDefault("analysis.cooldown", "10s")
	v.SetDefault("analysis.mode", "command")
	v.SetDefault("analysis.report_dir", ".")
	v.SetDefault("analysis.command.timeout", "5m")
	v.SetDefault("analysis.remote.timeout", "2m")
	v.SetDefault("analysis.remote.max_retries", 3)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.database", "fleetwatch")
	v.SetDefault("archive.collection", "entries")
	v.SetDefault("archive.ttl_days", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Replay.SourceFile == "" {
		return fmt.Errorf("replay.source_file is required")
	}
	if c.Replay.TargetFile == "" {
		return fmt.Errorf("replay.target_file is required")
	}
	if c.Replay.Interval < MinReplayInterval || c.Replay.Interval > MaxReplayInterval {
		return fmt.Errorf("replay.interval must be between %s and %s", MinReplayInterval, MaxReplayInterval)
	}
	if c.Replay.StartFromLine < 0 {
		return fmt.Errorf("replay.start_from_line must not be negative")
	}
	if c.Monitor.RefreshInterval <= 0 {
		return fmt.Errorf("monitor.refresh_interval must be positive")
	}
	if c.Monitor.Retention <= 0 {
		return fmt.Errorf("monitor.retention must be positive")
	}
	if c.Analysis.Cooldown < 0 {
		return fmt.Errorf("analysis.cooldown must not be negative")
	}
	switch c.Analysis.Mode {
	case "command":
		// An empty program is allowed: analysis is simply disabled.
	case "remote":
		if c.Analysis.Remote.URL == "" {
			return fmt.Errorf("analysis.remote.url is required when analysis.mode is remote")
		}
	default:
		return fmt.Errorf("analysis.mode must be command or remote")
	}
	if c.Archive.Enabled && c.Archive.URI == "" {
		return fmt.Errorf("archive.uri is required when archive is enabled")
	}
	return nil
}

// AnalyzerConfigured reports whether an analysis boundary is configured.
func (c *Config) AnalyzerConfigured() bool {
	switch c.Analysis.Mode {
	case "command":
		return c.Analysis.Command.Program != ""
	case "remote":
		return c.Analysis.Remote.URL != ""
	}
	return false
}

// WriteDefault writes a starter configuration file with every knob at its
// default value. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	def := map[string]interface{}{
		"replay": map[string]interface{}{
			"source_file":     "logs_source.jsonl",
			"target_file":     "fleet_health.log",
			"interval":        "2s",
			"start_from_line": 0,
			"state_file":      "",
		},
		"monitor": map[string]interface{}{
			"refresh_interval": "2s",
			"retention":        100,
		},
		"analysis": map[string]interface{}{
			"auto":       true,
			"cooldown":   "10s",
			"mode":       "command",
			"report_dir": ".",
			"command": map[string]interface{}{
				"program": "",
				"args":    []string{},
				"timeout": "5m",
			},
		},
		"archive": map[string]interface{}{
			"enabled":    false,
			"uri":        "",
			"database":   "fleetwatch",
			"collection": "entries",
			"ttl_days":   30,
		},
		"log_level":  "info",
		"log_format": "json",
	}

	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
