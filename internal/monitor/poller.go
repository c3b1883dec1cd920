package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fleetwatch/fleetwatch/pkg/models"
)

// EntrySink receives entries newly admitted by the tailer. Sink failures are
// logged and do not interrupt polling.
type EntrySink interface {
	Store(ctx context.Context, entries []models.Entry) error
}

// Poller drives one tail-then-gate cycle per refresh period. The gate and
// sink are optional.
type Poller struct {
	tailer  *Tailer
	gate    *Gate
	sink    EntrySink
	refresh time.Duration
	logger  *zap.Logger
}

// NewPoller creates a poller. gate and sink may be nil.
func NewPoller(tailer *Tailer, gate *Gate, sink EntrySink, refresh time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		tailer:  tailer,
		gate:    gate,
		sink:    sink,
		refresh: refresh,
		logger:  logger,
	}
}

// Start polls until the context is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle runs a single polling cycle: ingest new target-log content, hand
// admitted entries to the sink, then let the gate decide on analysis.
func (p *Poller) Cycle(ctx context.Context) {
	grew, admitted := p.tailer.Poll()

	if p.sink != nil && len(admitted) > 0 {
		if err := p.sink.Store(ctx, admitted); err != nil {
			p.logger.Warn("failed to archive entries",
				zap.Error(err), zap.Int("entries", len(admitted)))
		}
	}

	if p.gate != nil {
		p.gate.Observe(grew)
	}
}
