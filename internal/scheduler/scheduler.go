package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Periodic runs a job once at startup and then every Interval.
// With Align set, runs after the first one land on multiples of Interval
// (e.g. the top of the hour for 1h).
type Periodic struct {
	Interval time.Duration
	Align    bool
	Run      func(ctx context.Context) error
	Logger   *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// Start blocks until ctx is done. A failing run is logged and the schedule continues.
func (p *Periodic) Start(ctx context.Context) {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	// Run immediately once at startup
	p.runOnce(ctx)

	if p.Align {
		now := p.now().UTC()
		next := now.Truncate(p.Interval).Add(p.Interval)
		if !p.sleep(ctx, next.Sub(now)) {
			return
		}
		p.runOnce(ctx)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := p.now()
	if err := p.Run(ctx); err != nil {
		p.Logger.Warn("scheduled run failed", zap.Duration("took", p.now().Sub(start)), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
