package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptofolio/pkg/binance"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func checkInvariants(t *testing.T, snap *Snapshot, minValue decimal.Decimal) {
	t.Helper()
	seen := map[string]bool{}
	for i, h := range snap.Holdings {
		assert.NoError(t, h.Validate())
		assert.True(t, h.Value().Equal(h.Quantity.Mul(h.Price)))
		assert.False(t, h.Value().LessThan(minValue), "dust %s survived", h.Asset)
		assert.False(t, seen[h.Asset], "duplicate asset %s", h.Asset)
		seen[h.Asset] = true
		if i > 0 {
			assert.True(t, snap.Holdings[i-1].Value().GreaterThanOrEqual(h.Value()), "not sorted at %d", i)
		}
	}
}

// go test -v --run TestAggregateMergesSortsAndFilters
func TestAggregateMergesSortsAndFilters(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{
		spot("ETH", "1", "2500"),
		spot("DUST", "0.5", "1"),
		spot("BTC", "0.01", "60000"),
		spot("USDT", "1", "1"), // exactly at the threshold
	}}
	yield := &fakeSource{silo: SourceYieldProduct, holdings: []Holding{
		earn("SOL", "20", "150", SubtypeLocked),
		earn("ETH", "10", "2500", SubtypeFlexible), // duplicate, wallet wins
	}}

	a := NewAggregator(DefaultMinValue, zap.NewNop(), wallet, yield)
	snap, err := a.Aggregate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"SOL", "ETH", "BTC", "USDT"}, snap.Assets())
	assert.Equal(t, SourceLiquidWallet, snap.Holdings[1].Source)
	assert.True(t, snap.Complete())
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", snap.ID.String())
	assert.Equal(t, "6101", snap.TotalValue().String())
	assert.Equal(t, map[Source]int{SourceLiquidWallet: 3, SourceYieldProduct: 1}, snap.CountBySource())
	checkInvariants(t, snap, DefaultMinValue)
}

// go test -v --run TestAggregateDustDoesNotShadowRealPosition
func TestAggregateDustDoesNotShadowRealPosition(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{spot("BTC", "0.00001", "60000")}}
	yield := &fakeSource{silo: SourceYieldProduct, holdings: []Holding{earn("BTC", "0.5", "60000", SubtypeFlexible)}}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Holdings, 1)
	assert.Equal(t, SourceYieldProduct, snap.Holdings[0].Source)
}

// go test -v --run TestAggregateDropsOnlyMalformedRow
func TestAggregateDropsOnlyMalformedRow(t *testing.T) {
	bad := spot("ADA", "-5", "0.4")
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{spot("BNB", "2", "600"), bad, spot("XRP", "100", "0.5")}}
	yield := &fakeSource{silo: SourceYieldProduct, holdings: []Holding{{Asset: "OP", Quantity: dec("3"), Source: SourceYieldProduct, Subtype: SubtypeLocked}}}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BNB", "XRP"}, snap.Assets())
}

// go test -v --run TestAggregateStableTies
func TestAggregateStableTies(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{
		spot("AAA", "10", "1"), spot("BBB", "5", "2"), spot("CCC", "2", "5"),
	}}
	yield := &fakeSource{silo: SourceYieldProduct, holdings: []Holding{earn("DDD", "1", "10", SubtypeFlexible)}}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC", "DDD"}, snap.Assets())
}

// go test -v --run TestAggregateBothSourcesFail
func TestAggregateBothSourcesFail(t *testing.T) {
	walletErr := errors.New("spot down")
	yieldErr := errors.New("earn down")
	wallet := &fakeSource{silo: SourceLiquidWallet, err: walletErr, holdings: []Holding{spot("BTC", "1", "1")}}
	yield := &fakeSource{silo: SourceYieldProduct, err: yieldErr}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(context.Background())
	assert.Nil(t, snap)

	var aggErr *AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Len(t, aggErr.Failures, 2)
	assert.ErrorIs(t, err, walletErr)
	assert.ErrorIs(t, err, yieldErr)
	assert.Contains(t, err.Error(), "Simple Earn")
}

// go test -v --run TestAggregateOneSourceFails
func TestAggregateOneSourceFails(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{spot("BTC", "1", "60000")}}
	yield := &fakeSource{silo: SourceYieldProduct, err: errors.New("earn down")}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Complete())
	assert.Equal(t, []Source{SourceYieldProduct}, snap.FailedSources)
	assert.Equal(t, []string{"BTC"}, snap.Assets())
}

// go test -v --run TestAggregateEmptyButHealthy
func TestAggregateEmptyButHealthy(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet}
	yield := &fakeSource{silo: SourceYieldProduct}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Holdings)
	assert.True(t, snap.TotalValue().IsZero())
}

// go test -v --run TestAggregateCancelled
func TestAggregateCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{spot("BTC", "1", "60000")}}
	yield := &fakeSource{silo: SourceYieldProduct, block: true}

	snap, err := NewAggregator(DefaultMinValue, nil, wallet, yield).Aggregate(ctx)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// go test -v --run TestAggregatePartialSourceMarksSnapshotIncomplete
func TestAggregatePartialSourceMarksSnapshotIncomplete(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{spot("BTC", "1", "60000")}}
	yield := &fakeSource{silo: SourceYieldProduct, err: &PartialError{
		Source: SourceYieldProduct, Missing: []Subtype{SubtypeLocked}, Err: errors.New("locked listing: 503"),
	}, holdings: []Holding{earn("ETH", "2", "2500", SubtypeFlexible)}}

	snap, err := NewAggregator(DefaultMinValue, zap.NewNop(), wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, snap.Assets())
	assert.Empty(t, snap.FailedSources)
	assert.Equal(t, []string{"Simple Earn/Locked"}, snap.Degraded)
	assert.False(t, snap.Complete())
}

// go test -v --run TestAggregateYieldBulkDownIsNotComplete
func TestAggregateYieldBulkDownIsNotComplete(t *testing.T) {
	wallet := &fakeSource{silo: SourceLiquidWallet, holdings: []Holding{spot("BTC", "1", "60000")}}
	client := &fakeEarn{
		bulkErr: map[binance.ProductType]error{
			binance.ProductFlexible: errUpstream,
			binance.ProductLocked:   errUpstream,
		},
	}
	yield := NewYieldProduct(client, newFakePricer(nil), YieldOptions{KnownAssets: []string{"ETH"}}, nil)

	snap, err := NewAggregator(DefaultMinValue, zap.NewNop(), wallet, yield).Aggregate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC"}, snap.Assets())
	assert.Equal(t, []string{"Simple Earn/Flexible", "Simple Earn/Locked"}, snap.Degraded)
	assert.False(t, snap.Complete())
}
