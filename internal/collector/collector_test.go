package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cryptofolio/internal/portfolio"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubSource struct {
	snap *portfolio.Snapshot
	err  error
}

func (s stubSource) Aggregate(context.Context) (*portfolio.Snapshot, error) {
	return s.snap, s.err
}

// memorySink keeps saved snapshots in order.
type memorySink struct {
	mu    sync.Mutex
	saved []*portfolio.Snapshot
	err   error
}

func (m *memorySink) SaveSnapshot(_ context.Context, _ string, s *portfolio.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

func snapshot(failed ...portfolio.Source) *portfolio.Snapshot {
	return &portfolio.Snapshot{
		ID:      uuid.New(),
		TakenAt: time.Now(),
		Holdings: []portfolio.Holding{{
			Asset: "ETH", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(3000),
			Source: portfolio.SourceLiquidWallet, Subtype: portfolio.SubtypeSpot,
		}},
		FailedSources: failed,
	}
}

func TestRunCycleSavesSnapshot(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := &memorySink{}
	snap := snapshot()

	c := New(stubSource{snap: snap}, sink, "USDT", zap.New(core))
	got, err := c.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Same(t, snap, got)
	require.Len(t, sink.saved, 1)
	assert.Equal(t, snap.ID, sink.saved[0].ID)

	entries := logs.FilterMessage("portfolio snapshot").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "6000.00", entries[0].ContextMap()["total"])
}

func TestRunCycleWithoutSink(t *testing.T) {
	c := New(stubSource{snap: snapshot()}, nil, "USDT", nil)
	_, err := c.RunCycle(context.Background())
	assert.NoError(t, err)
}

func TestRunCycleAggregationFailure(t *testing.T) {
	sink := &memorySink{}
	aggErr := &portfolio.AggregationError{}

	c := New(stubSource{err: aggErr}, sink, "USDT", nil)
	snap, err := c.RunCycle(context.Background())

	assert.Nil(t, snap)
	var target *portfolio.AggregationError
	assert.ErrorAs(t, err, &target)
	assert.Empty(t, sink.saved)
}

func TestRunCycleSinkFailureKeepsSnapshot(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}

	c := New(stubSource{snap: snapshot()}, sink, "USDT", nil)
	snap, err := c.RunCycle(context.Background())

	assert.NotNil(t, snap)
	assert.ErrorContains(t, err, "db down")
}

func TestIncompleteSnapshotLoggedAsWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	c := New(stubSource{snap: snapshot(portfolio.SourceYieldProduct)}, nil, "USDT", zap.New(core))
	require.NoError(t, c.Run(context.Background()))

	entries := logs.FilterMessage("portfolio snapshot incomplete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"Simple Earn"}, entries[0].ContextMap()["failed_sources"])
}

func TestDegradedSnapshotLoggedAsWarning(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	snap := snapshot()
	snap.Degraded = []string{"Simple Earn/Locked"}

	c := New(stubSource{snap: snap}, nil, "USDT", zap.New(core))
	require.NoError(t, c.Run(context.Background()))

	assert.Zero(t, logs.FilterMessage("portfolio snapshot").Len())
	entries := logs.FilterMessage("portfolio snapshot incomplete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"Simple Earn/Locked"}, entries[0].ContextMap()["degraded"])
}
