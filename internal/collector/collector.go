package collector

import (
	"context"
	"fmt"
	"time"

	"cryptofolio/internal/portfolio"

	"go.uber.org/zap"
)

// Snapshotter produces one portfolio snapshot per call.
type Snapshotter interface {
	Aggregate(ctx context.Context) (*portfolio.Snapshot, error)
}

// Sink stores finished snapshots.
type Sink interface {
	SaveSnapshot(ctx context.Context, quote string, s *portfolio.Snapshot) error
}

// Collector runs aggregation cycles and hands the result to an optional sink.
type Collector struct {
	source      Snapshotter
	sink        Sink
	quote       string
	saveTimeout time.Duration
	logger      *zap.Logger
}

// New creates a collector. sink may be nil.
func New(source Snapshotter, sink Sink, quote string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		source:      source,
		sink:        sink,
		quote:       quote,
		saveTimeout: 5 * time.Second,
		logger:      logger,
	}
}

// RunCycle aggregates once, logs the result, and stores it. A sink failure is
// returned together with the snapshot.
func (c *Collector) RunCycle(ctx context.Context) (*portfolio.Snapshot, error) {
	snap, err := c.source.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	c.report(snap)

	if c.sink == nil {
		return snap, nil
	}

	// context for DB insert (short timeout)
	dbCtx, cancel := context.WithTimeout(ctx, c.saveTimeout)
	defer cancel()
	if err := c.sink.SaveSnapshot(dbCtx, c.quote, snap); err != nil {
		return snap, fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	c.logger.Debug("snapshot saved", zap.String("id", snap.ID.String()))
	return snap, nil
}

// Run adapts RunCycle to the scheduler.
func (c *Collector) Run(ctx context.Context) error {
	_, err := c.RunCycle(ctx)
	return err
}

func (c *Collector) report(snap *portfolio.Snapshot) {
	for _, h := range snap.Holdings {
		c.logger.Debug("holding",
			zap.String("asset", h.Asset),
			zap.Stringer("source", h.Source),
			zap.Stringer("subtype", h.Subtype),
			zap.String("quantity", h.Quantity.String()),
			zap.String("value", h.Value().StringFixed(2)),
			zap.String("yield", h.YieldRate.StringFixed(2)),
		)
	}

	counts := snap.CountBySource()
	fields := []zap.Field{
		zap.String("id", snap.ID.String()),
		zap.Int("holdings", len(snap.Holdings)),
		zap.Int("spot", counts[portfolio.SourceLiquidWallet]),
		zap.Int("earn", counts[portfolio.SourceYieldProduct]),
		zap.String("total", snap.TotalValue().StringFixed(2)),
		zap.String("quote", c.quote),
	}
	if !snap.Complete() {
		failed := make([]string, len(snap.FailedSources))
		for i, s := range snap.FailedSources {
			failed[i] = s.String()
		}
		fields = append(fields, zap.Strings("failed_sources", failed), zap.Strings("degraded", snap.Degraded))
		c.logger.Warn("portfolio snapshot incomplete", fields...)
		return
	}
	c.logger.Info("portfolio snapshot", fields...)
}
