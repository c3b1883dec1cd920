package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

var corpus = []string{
	`{"ts":"2026-01-01T00:00:00Z","host":"web-01","level":"INFO","cpu":12,"mem":40,"disk":55,"temp_f":98,"msg":"ok"}`,
	`{"ts":"2026-01-01T00:00:02Z","host":"web-02","level":"WARN","cpu":81,"mem":62,"disk":70,"temp_f":120,"code":"CPU_HIGH","msg":"cpu elevated"}`,
	`{"ts":"2026-01-01T00:00:04Z","host":"db-01","level":"CRITICAL","cpu":97,"mem":91,"disk":88,"temp_f":160,"code":"TEMP_CRIT","msg":"overheating"}`,
	`{"ts":"2026-01-01T00:00:06Z","host":"web-01","level":"INFO","cpu":14,"mem":41,"disk":55,"temp_f":99,"msg":"recovered"}`,
}

func writeCorpus(t *testing.T, dir string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, "source.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, dir string, lines []string, startFrom int) (*Engine, string) {
	t.Helper()
	source := writeCorpus(t, dir, lines)
	target := filepath.Join(dir, "target.log")
	// Tiny interval: each cycle still sleeps one tick, so replays finish in
	// a few hundred milliseconds.
	e := NewEngine(source, target, "", time.Millisecond, startFrom, zap.NewNop())
	return e, target
}

func waitUntilStopped(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !e.Status().Running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("engine did not stop in time")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestReplayAppendsInOrder(t *testing.T) {
	e, target := newTestEngine(t, t.TempDir(), corpus, 0)

	e.Start()
	waitUntilStopped(t, e)

	got := readLines(t, target)
	if len(got) != len(corpus) {
		t.Fatalf("target has %d lines, want %d", len(got), len(corpus))
	}
	for i, line := range got {
		if line != corpus[i] {
			t.Errorf("line %d = %q, want %q", i, line, corpus[i])
		}
	}

	status := e.Status()
	if status.Cursor != len(corpus) {
		t.Errorf("cursor = %d, want %d", status.Cursor, len(corpus))
	}
	if status.Progress() != "4/4" {
		t.Errorf("progress = %q, want 4/4", status.Progress())
	}
}

func TestFreshStartTruncatesTarget(t *testing.T) {
	dir := t.TempDir()
	e, target := newTestEngine(t, dir, corpus, 0)

	if err := os.WriteFile(target, []byte("stale content\n"), 0644); err != nil {
		t.Fatal(err)
	}

	e.Start()
	waitUntilStopped(t, e)

	got := readLines(t, target)
	if len(got) != len(corpus) || got[0] != corpus[0] {
		t.Errorf("stale content survived a fresh start: %v", got)
	}
}

func TestStopAndResume(t *testing.T) {
	e, target := newTestEngine(t, t.TempDir(), corpus, 0)

	e.Start()
	// Wait for at least one append, then stop mid-replay.
	deadline := time.Now().Add(5 * time.Second)
	for e.Status().Cursor == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.Stop()

	cursor := e.Status().Cursor
	if cursor == 0 {
		t.Fatal("no entries replayed before stop")
	}
	if got := readLines(t, target); len(got) != cursor {
		t.Fatalf("target has %d lines, cursor is %d", len(got), cursor)
	}

	// Resume: the remainder arrives, nothing is duplicated.
	e.Start()
	waitUntilStopped(t, e)

	got := readLines(t, target)
	if len(got) != len(corpus) {
		t.Fatalf("after resume target has %d lines, want %d", len(got), len(corpus))
	}
	for i, line := range got {
		if line != corpus[i] {
			t.Errorf("line %d = %q, want %q", i, line, corpus[i])
		}
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, t.TempDir(), corpus, 0)

	done := make(chan struct{})
	go func() {
		e.Stop()
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an idle engine")
	}
}

func TestStartAfterCompletionIsNoOp(t *testing.T) {
	e, target := newTestEngine(t, t.TempDir(), corpus, 0)

	e.Start()
	waitUntilStopped(t, e)

	e.Start()
	if e.Status().Running {
		t.Error("engine restarted after completing the corpus")
	}
	if got := readLines(t, target); len(got) != len(corpus) {
		t.Errorf("target grew to %d lines after completed start", len(got))
	}
}

func TestResetReturnsToZero(t *testing.T) {
	e, target := newTestEngine(t, t.TempDir(), corpus, 0)

	e.Start()
	waitUntilStopped(t, e)

	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}

	if got := e.Status().Cursor; got != 0 {
		t.Errorf("cursor after reset = %d, want 0", got)
	}
	if got := readLines(t, target); len(got) != 0 {
		t.Errorf("target not empty after reset: %v", got)
	}

	// A reset engine replays the full corpus again.
	e.Start()
	waitUntilStopped(t, e)
	if got := readLines(t, target); len(got) != len(corpus) {
		t.Errorf("target has %d lines after reset+start, want %d", len(got), len(corpus))
	}
}

func TestMissingSourceIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.log")
	e := NewEngine(filepath.Join(dir, "absent.jsonl"), target, "", time.Millisecond, 0, zap.NewNop())

	e.Start()
	waitUntilStopped(t, e)

	if got := e.Status().Cursor; got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}
}

func TestStartFromLineSkipsPrefix(t *testing.T) {
	e, target := newTestEngine(t, t.TempDir(), corpus, 2)

	e.Start()
	waitUntilStopped(t, e)

	got := readLines(t, target)
	want := corpus[2:]
	if len(got) != len(want) {
		t.Fatalf("target has %d lines, want %d", len(got), len(want))
	}
	for i, line := range got {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}

func TestCheckpointSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	source := writeCorpus(t, dir, corpus)
	target := filepath.Join(dir, "target.log")
	stateFile := filepath.Join(dir, "state.json")

	e := NewEngine(source, target, stateFile, time.Millisecond, 0, zap.NewNop())
	e.Start()
	waitUntilStopped(t, e)

	restarted := NewEngine(source, target, stateFile, time.Millisecond, 0, zap.NewNop())
	if got := restarted.Status().Cursor; got != len(corpus) {
		t.Errorf("restored cursor = %d, want %d", got, len(corpus))
	}
}

func TestStatusReflectsCorpusEdits(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestEngine(t, dir, corpus, 0)

	if got := e.Status().Total; got != len(corpus) {
		t.Fatalf("total = %d, want %d", got, len(corpus))
	}

	writeCorpus(t, dir, corpus[:2])
	if got := e.Status().Total; got != 2 {
		t.Errorf("total after corpus edit = %d, want 2", got)
	}
}
