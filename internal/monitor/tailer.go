package monitor

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetwatch/fleetwatch/pkg/models"
)

// Tailer incrementally ingests the target log. Each poll re-reads the file in
// full, takes the suffix of lines beyond the last observed count, and admits
// parsed records it has not seen before into a bounded visible window.
//
// Only complete (newline-terminated) lines are counted, so a line caught
// mid-write is ignored until the write finishes and is then admitted once.
type Tailer struct {
	targetFile string
	retention  int
	logger     *zap.Logger

	lineCount int
	seen      map[string]struct{} // raw text of admitted lines
	entries   []models.Entry
}

// NewTailer creates a tailer over the target log. retention caps the visible
// window; raw-line accounting and the seen-set are never capped.
func NewTailer(targetFile string, retention int, logger *zap.Logger) *Tailer {
	return &Tailer{
		targetFile: targetFile,
		retention:  retention,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Poll reads the current target log and admits new entries. It returns the
// raw line growth since the previous poll and the entries admitted this poll.
// A missing target log means zero new lines, not an error.
func (t *Tailer) Poll() (int, []models.Entry) {
	data, err := os.ReadFile(t.targetFile)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("failed to read target log", zap.Error(err))
		}
		return 0, nil
	}

	lines := completeLines(string(data))
	if len(lines) <= t.lineCount {
		return 0, nil
	}

	fresh := lines[t.lineCount:]
	grew := len(fresh)

	var admitted []models.Entry
	for _, raw := range fresh {
		rec, err := models.ParseRecord(raw)
		if err != nil {
			// Unparseable lines still consume their raw position.
			t.logger.Debug("dropping unparseable line", zap.Error(err))
			continue
		}
		if _, dup := t.seen[raw]; dup {
			continue
		}
		t.seen[raw] = struct{}{}
		admitted = append(admitted, models.Entry{
			ObservedAt: time.Now(),
			Record:     rec,
			Raw:        raw,
		})
	}

	t.lineCount = len(lines)
	if len(admitted) > 0 {
		t.entries = append(t.entries, admitted...)
		if len(t.entries) > t.retention {
			t.entries = t.entries[len(t.entries)-t.retention:]
		}
		t.logger.Debug("entries admitted",
			zap.Int("admitted", len(admitted)),
			zap.Int("line_count", t.lineCount))
	}

	return grew, admitted
}

// Entries returns a copy of the visible window in file order (oldest first).
func (t *Tailer) Entries() []models.Entry {
	out := make([]models.Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// LineCount returns the number of complete raw lines observed so far.
func (t *Tailer) LineCount() int {
	return t.lineCount
}

// Reset clears all tail state. Call it when the target log is truncated.
func (t *Tailer) Reset() {
	t.lineCount = 0
	t.seen = make(map[string]struct{})
	t.entries = nil
}

// completeLines splits text into newline-terminated lines. A trailing
// fragment without its terminator is not counted.
func completeLines(text string) []string {
	idx := strings.LastIndexByte(text, '\n')
	if idx < 0 {
		return nil
	}
	return strings.Split(text[:idx], "\n")
}
