package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity levels emitted by fleet hosts.
const (
	LevelInfo     = "INFO"
	LevelWarn     = "WARN"
	LevelCritical = "CRITICAL"
)

// LogRecord is a single line of fleet-health telemetry in its wire form.
// The target log carries one JSON-encoded record per line.
type LogRecord struct {
	Timestamp string  `json:"ts"`
	Host      string  `json:"host"`
	Level     string  `json:"level"`
	CPU       float64 `json:"cpu"`
	Mem       float64 `json:"mem"`
	Disk      float64 `json:"disk"`
	TempF     float64 `json:"temp_f"`
	Code      string  `json:"code,omitempty"`
	Message   string  `json:"msg"`
}

// ParseRecord parses one target-log line into a structured record.
// Lines that are not valid JSON objects are rejected.
func ParseRecord(line string) (*LogRecord, error) {
	var rec LogRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, fmt.Errorf("invalid log record: %w", err)
	}
	return &rec, nil
}

// Display renders a record for terminal output:
//
//	[ts] [LEVEL] host | CPU: x% | Mem: x% | Disk: x% | Temp: x°F | code | msg
func (r *LogRecord) Display() string {
	prefix := "[INFO]"
	switch r.Level {
	case LevelWarn:
		prefix = "[WARN]"
	case LevelCritical:
		prefix = "[CRIT]"
	}

	out := fmt.Sprintf("[%s] %s %s | CPU: %g%% | Mem: %g%% | Disk: %g%% | Temp: %g°F",
		r.Timestamp, prefix, r.Host, r.CPU, r.Mem, r.Disk, r.TempF)
	if r.Code != "" {
		out += " | " + r.Code
	}
	return out + " | " + r.Message
}

// Entry is a record admitted by the tailer, with ingestion metadata.
type Entry struct {
	ObservedAt time.Time
	Record     *LogRecord
	Raw        string
}

// ReplayStatus is a point-in-time view of the replay engine.
type ReplayStatus struct {
	Running  bool
	Cursor   int
	Total    int
	Interval time.Duration
}

// Progress reports replay position as "cursor/total".
func (s ReplayStatus) Progress() string {
	return fmt.Sprintf("%d/%d", s.Cursor, s.Total)
}
