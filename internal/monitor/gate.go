package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Analyzer is the external analysis boundary: it consumes the accumulated
// target log and writes report artifacts as a side effect. Calls may take
// arbitrarily long and are not cancellable once dispatched.
type Analyzer interface {
	Analyze(ctx context.Context, logPath string) error
}

// Gate decides when the analysis boundary is invoked. An automatic trigger
// fires only when unanalyzed data has accumulated, no invocation is in
// flight, and the cooldown since the last completion has elapsed. At most one
// invocation is in flight at any time, regardless of trigger source.
type Gate struct {
	analyzer Analyzer
	logPath  string
	cooldown time.Duration
	logger   *zap.Logger

	mu            sync.Mutex
	auto          bool
	pending       bool // data observed but not yet analyzed
	inFlight      bool
	lastCompleted time.Time
	lastErr       error
}

// GateStatus is a point-in-time view of the gate.
type GateStatus struct {
	Auto          bool
	InFlight      bool
	LastCompleted time.Time
	LastErr       error
}

// NewGate creates a trigger gate over the given analysis boundary.
func NewGate(analyzer Analyzer, logPath string, cooldown time.Duration, auto bool, logger *zap.Logger) *Gate {
	return &Gate{
		analyzer: analyzer,
		logPath:  logPath,
		cooldown: cooldown,
		auto:     auto,
		logger:   logger,
	}
}

// Observe records the outcome of one polling cycle and fires the analysis
// boundary when all gate conditions hold. Data that arrives during a cooldown
// stays pending and fires once the cooldown elapses.
func (g *Gate) Observe(newLines int) {
	g.mu.Lock()
	if newLines > 0 {
		g.pending = true
	}
	if !g.auto || !g.pending || g.inFlight || !g.cooledDownLocked() {
		g.mu.Unlock()
		return
	}
	g.pending = false
	g.inFlight = true
	g.mu.Unlock()

	g.dispatch("auto")
}

// RunNow requests an immediate analysis, bypassing the new-data and cooldown
// conditions. It reports false if an invocation is already in flight.
func (g *Gate) RunNow() bool {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return false
	}
	g.pending = false
	g.inFlight = true
	g.mu.Unlock()

	g.dispatch("manual")
	return true
}

// SetAuto enables or disables automatic triggering.
func (g *Gate) SetAuto(auto bool) {
	g.mu.Lock()
	g.auto = auto
	g.mu.Unlock()
}

// Status returns a point-in-time view of the gate.
func (g *Gate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateStatus{
		Auto:          g.auto,
		InFlight:      g.inFlight,
		LastCompleted: g.lastCompleted,
		LastErr:       g.lastErr,
	}
}

// dispatch invokes the analysis boundary on its own goroutine so its latency
// never blocks the polling loop. Completion is recorded whether the call
// succeeded or failed: a failed attempt consumes the cooldown too, which
// prevents a hot retry loop against a persistently failing boundary.
func (g *Gate) dispatch(reason string) {
	g.logger.Info("analysis dispatched",
		zap.String("reason", reason), zap.String("log_path", g.logPath))

	go func() {
		err := g.analyzer.Analyze(context.Background(), g.logPath)

		g.mu.Lock()
		g.inFlight = false
		g.lastCompleted = time.Now()
		g.lastErr = err
		g.mu.Unlock()

		if err != nil {
			g.logger.Error("analysis failed", zap.Error(err))
		} else {
			g.logger.Info("analysis complete")
		}
	}()
}

func (g *Gate) cooledDownLocked() bool {
	if g.lastCompleted.IsZero() {
		return true
	}
	return time.Since(g.lastCompleted) >= g.cooldown
}
