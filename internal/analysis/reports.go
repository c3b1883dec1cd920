package analysis

import (
	"fmt"
	"os"
	"path/filepath"
)

// Report artifact filenames written by the analysis boundary.
const (
	IncidentReportFile = "incident_report.md"
	FleetSummaryFile   = "fleet_summary.md"
)

// ReadIncidentReport returns the current incident report and whether one is
// present and non-empty.
func ReadIncidentReport(dir string) (string, bool) {
	return readReport(filepath.Join(dir, IncidentReportFile))
}

// ReadFleetSummary returns the current fleet summary and whether one is
// present and non-empty.
func ReadFleetSummary(dir string) (string, bool) {
	return readReport(filepath.Join(dir, FleetSummaryFile))
}

func readReport(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// WriteReports replaces both report artifacts.
func WriteReports(dir, incident, summary string) error {
	if err := os.WriteFile(filepath.Join(dir, IncidentReportFile), []byte(incident), 0644); err != nil {
		return fmt.Errorf("failed to write incident report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FleetSummaryFile), []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write fleet summary: %w", err)
	}
	return nil
}

// RemoveReports deletes both report artifacts. Missing files are not errors.
// Called on fresh start and reset so stale reports never outlive their data.
func RemoveReports(dir string) error {
	for _, name := range []string{IncidentReportFile, FleetSummaryFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}
