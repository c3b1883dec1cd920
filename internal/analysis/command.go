package analysis

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// CommandAnalyzer runs a local analysis program. The program receives the
// target log path as its final argument and is expected to write the report
// artifacts itself.
type CommandAnalyzer struct {
	program string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCommandAnalyzer creates an analyzer that shells out to program.
func NewCommandAnalyzer(program string, args []string, timeout time.Duration, logger *zap.Logger) *CommandAnalyzer {
	return &CommandAnalyzer{
		program: program,
		args:    args,
		timeout: timeout,
		logger:  logger,
	}
}

// Analyze runs the configured program against the given log path.
func (a *CommandAnalyzer) Analyze(ctx context.Context, logPath string) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	args := append(append([]string{}, a.args...), logPath)
	cmd := exec.CommandContext(ctx, a.program, args...)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("analysis command failed: %w: %s", err, bytes.TrimSpace(out))
	}

	a.logger.Info("analysis command finished",
		zap.String("program", a.program),
		zap.Duration("duration", time.Since(start)))
	return nil
}
