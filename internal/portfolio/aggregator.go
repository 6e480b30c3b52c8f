package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMinValue is the dust threshold in the quote asset.
var DefaultMinValue = decimal.NewFromInt(1)

// SourceError is the failure of one silo.
type SourceError struct {
	Source Source
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// AggregationError is returned when every source failed, so no snapshot can be built.
type AggregationError struct {
	Failures []SourceError
}

func (e *AggregationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return "aggregation failed, all sources unavailable: " + strings.Join(parts, "; ")
}

func (e *AggregationError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// Aggregator builds the portfolio snapshot from its balance sources.
type Aggregator struct {
	sources  []BalanceSource
	minValue decimal.Decimal
	now      func() time.Time
	logger   *zap.Logger
}

// NewAggregator creates an aggregator. Sources are listed in priority order:
// when two sources report the same asset, the earlier one wins.
func NewAggregator(minValue decimal.Decimal, logger *zap.Logger, sources ...BalanceSource) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		sources:  sources,
		minValue: minValue,
		now:      time.Now,
		logger:   logger,
	}
}

type fetchResult struct {
	holdings []Holding
	err      error
}

// Aggregate runs one cycle. It returns a snapshot, an *AggregationError when
// all sources failed, or the context error when ctx ended first. It never
// returns a partially built snapshot together with an error.
func (a *Aggregator) Aggregate(ctx context.Context) (*Snapshot, error) {
	start := a.now()
	results := make([]fetchResult, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			hs, err := src.Fetch(ctx)
			results[i] = fetchResult{holdings: hs, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		a.logger.Warn("aggregation cancelled, discarding results", zap.Error(err))
		return nil, fmt.Errorf("aggregation cancelled: %w", err)
	}

	var (
		raw      []Holding
		failures []SourceError
		partials []*PartialError
	)
	for i, r := range results {
		var partial *PartialError
		if errors.As(r.err, &partial) {
			partials = append(partials, partial)
			raw = append(raw, r.holdings...)
			continue
		}
		if r.err != nil {
			failures = append(failures, SourceError{Source: a.sources[i].Silo(), Err: r.err})
			continue
		}
		raw = append(raw, r.holdings...)
	}
	if len(a.sources) > 0 && len(failures) == len(a.sources) {
		return nil, &AggregationError{Failures: failures}
	}

	holdings := a.finalize(raw)

	snap := &Snapshot{
		ID:       uuid.New(),
		TakenAt:  start,
		Holdings: holdings,
	}
	for _, f := range failures {
		a.logger.Warn("source unavailable, snapshot incomplete", zap.Stringer("source", f.Source), zap.Error(f.Err))
		snap.FailedSources = append(snap.FailedSources, f.Source)
	}
	for _, p := range partials {
		a.logger.Warn("source partially read, snapshot incomplete", zap.Stringer("source", p.Source), zap.Error(p.Err))
		snap.Degraded = append(snap.Degraded, p.Parts()...)
	}

	a.logger.Info("portfolio aggregated",
		zap.String("snapshot", snap.ID.String()),
		zap.Int("raw", len(raw)),
		zap.Int("holdings", len(holdings)),
		zap.Stringer("total_value", snap.TotalValue()),
		zap.Strings("assets", snap.Assets()),
		zap.Duration("took", a.now().Sub(start)),
	)
	return snap, nil
}

// finalize validates, drops dust, dedupes by asset and sorts by value descending.
func (a *Aggregator) finalize(raw []Holding) []Holding {
	valid := make([]Holding, 0, len(raw))
	for _, h := range raw {
		if err := h.Validate(); err != nil {
			a.logger.Warn("dropping invalid holding", zap.Error(err))
			continue
		}
		valid = append(valid, h)
	}

	kept := valid[:0]
	for _, h := range valid {
		if h.Value().LessThan(a.minValue) {
			a.logger.Debug("dropping dust", zap.String("asset", h.Asset), zap.Stringer("value", h.Value()))
			continue
		}
		kept = append(kept, h)
	}

	out := DedupeByAsset(kept)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value().GreaterThan(out[j].Value())
	})
	return out
}
