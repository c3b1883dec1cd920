package replay

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fleetwatch/fleetwatch/pkg/models"
)

const (
	// tick is the granularity at which the replay loop re-checks the
	// running flag while sleeping between appends. Stop latency is bounded
	// by one tick, not by the full replay interval.
	tick = 100 * time.Millisecond

	// stopTimeout bounds how long Stop waits for the loop to exit.
	stopTimeout = 5 * time.Second
)

// Engine paces entries from a source corpus into an append-only target log.
// It is resumable: Stop followed by Start continues from the current cursor,
// and a state file (when configured) carries the cursor across restarts.
type Engine struct {
	sourceFile string
	targetFile string
	stateFile  string
	logger     *zap.Logger

	// mu serializes append and truncate on the target log so a reset can
	// never interleave with an in-flight append.
	mu sync.Mutex

	cursor   atomic.Int64
	running  atomic.Bool
	interval atomic.Int64 // nanoseconds

	doneMu sync.Mutex
	done   chan struct{} // closed when the loop exits; nil while idle
}

// NewEngine creates a replay engine. When stateFile is non-empty and
// startFromLine is zero, a previously checkpointed cursor is restored.
func NewEngine(sourceFile, targetFile, stateFile string, interval time.Duration, startFromLine int, logger *zap.Logger) *Engine {
	e := &Engine{
		sourceFile: sourceFile,
		targetFile: targetFile,
		stateFile:  stateFile,
		logger:     logger,
	}
	e.interval.Store(int64(interval))
	e.cursor.Store(int64(startFromLine))

	if stateFile != "" && startFromLine == 0 {
		if cur, ok := e.loadCheckpoint(); ok {
			e.cursor.Store(cur)
			logger.Info("resuming replay from checkpoint",
				zap.Int64("cursor", cur),
				zap.String("state_file", stateFile))
		}
	}

	return e
}

// Start begins replaying in a background goroutine. Calling Start while the
// engine is running is a no-op, as is calling it after the corpus has been
// fully replayed (use Reset to run again). Starting with the cursor at zero
// truncates the target log first.
func (e *Engine) Start() {
	if cur := e.cursor.Load(); cur > 0 {
		if total := int64(len(e.readSource())); cur >= total {
			e.logger.Info("replay already complete; reset to run again",
				zap.Int64("cursor", cur), zap.Int64("total", total))
			return
		}
	}

	if !e.running.CompareAndSwap(false, true) {
		e.logger.Info("replay engine already running")
		return
	}

	if e.cursor.Load() == 0 {
		e.mu.Lock()
		if err := os.WriteFile(e.targetFile, nil, 0644); err != nil {
			e.logger.Error("failed to truncate target log", zap.Error(err))
		}
		e.mu.Unlock()
	}

	done := make(chan struct{})
	e.doneMu.Lock()
	e.done = done
	e.doneMu.Unlock()

	go e.run(done)

	e.logger.Info("replay engine started", zap.Duration("interval", e.Interval()))
}

// Stop clears the running flag and waits, bounded by a timeout, for the
// replay loop to exit. Calling Stop while not running is a no-op.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	e.doneMu.Lock()
	done := e.done
	e.doneMu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			e.logger.Warn("timed out waiting for replay loop to exit")
		}
	}

	e.logger.Info("replay engine stopped", zap.Int64("cursor", e.cursor.Load()))
}

// Reset sets the cursor back to zero and truncates the target log. Safe to
// call while running: the truncation is serialized against the append path.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cursor.Store(0)
	if err := os.WriteFile(e.targetFile, nil, 0644); err != nil {
		return fmt.Errorf("failed to truncate target log: %w", err)
	}
	e.checkpoint(0)

	e.logger.Info("replay engine reset")
	return nil
}

// Status returns a point-in-time view of the engine. The total is recomputed
// from the source corpus so edits made between runs are reflected. Status
// never blocks on the append path.
func (e *Engine) Status() models.ReplayStatus {
	return models.ReplayStatus{
		Running:  e.running.Load(),
		Cursor:   int(e.cursor.Load()),
		Total:    len(e.readSource()),
		Interval: e.Interval(),
	}
}

// Interval returns the configured replay interval.
func (e *Engine) Interval() time.Duration {
	return time.Duration(e.interval.Load())
}

// SetInterval changes the replay interval. Takes effect on the next cycle.
func (e *Engine) SetInterval(d time.Duration) {
	e.interval.Store(int64(d))
}

// run is the replay loop. It loads the corpus fresh on each activation, then
// appends one entry per interval until the corpus is exhausted or the running
// flag is cleared.
func (e *Engine) run(done chan struct{}) {
	defer close(done)
	defer e.running.Store(false)

	lines := e.readSource()
	total := int64(len(lines))
	if total == 0 {
		e.logger.Warn("source corpus empty or unreadable; nothing to replay",
			zap.String("source", e.sourceFile))
		return
	}

	e.logger.Info("replay loop started",
		zap.Int64("cursor", e.cursor.Load()), zap.Int64("total", total))

	for e.running.Load() {
		e.mu.Lock()
		cur := e.cursor.Load()
		if cur >= total {
			e.mu.Unlock()
			e.logger.Info("replay complete", zap.Int64("total", total))
			return
		}
		err := appendLine(e.targetFile, lines[cur])
		cur = e.cursor.Add(1)
		e.mu.Unlock()

		if err != nil {
			// One entry lost; the stream keeps going.
			e.logger.Error("failed to append to target log",
				zap.Error(err), zap.Int64("entry", cur))
		} else {
			e.logger.Debug("entry replayed",
				zap.Int64("cursor", cur), zap.Int64("total", total))
		}
		e.checkpoint(cur)

		if !e.sleepInterval() {
			break
		}
	}

	e.logger.Info("replay loop stopped", zap.Int64("cursor", e.cursor.Load()))
}

// sleepInterval sleeps for the configured interval in short ticks, returning
// false as soon as the running flag is cleared.
func (e *Engine) sleepInterval() bool {
	interval := e.Interval()
	for slept := time.Duration(0); slept < interval; slept += tick {
		time.Sleep(tick)
		if !e.running.Load() {
			return false
		}
	}
	return true
}

// readSource reads the full source corpus. A missing or unreadable corpus is
// a zero-data condition, not an error.
func (e *Engine) readSource() []string {
	data, err := os.ReadFile(e.sourceFile)
	if err != nil {
		if !os.IsNotExist(err) {
			e.logger.Warn("failed to read source corpus", zap.Error(err))
		}
		return nil
	}

	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// appendLine appends one pre-terminated line in a single write call so
// whole-file readers never observe a torn line.
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
