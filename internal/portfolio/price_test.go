package portfolio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cryptofolio/internal/memorystore"
	"cryptofolio/pkg/binance"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errInvalidSymbol = errors.New("invalid symbol")

func newTestResolver(ticker TickerClient) (*PriceResolver, *time.Time) {
	r := NewPriceResolver(ticker, memorystore.NewPriceStore(), PricingConfig{}, zap.NewNop())
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }
	return r, &now
}

// go test -v --run TestResolverCacheHit
func TestResolverCacheHit(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "ETHUSDT").Return(dec("2500.5"), nil).Once()

	r, now := newTestResolver(ticker)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "ETH")
	require.NoError(t, err)

	*now = now.Add(4*time.Minute + 59*time.Second)
	second, err := r.Resolve(ctx, "ETH")
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	ticker.AssertNumberOfCalls(t, "TickerPrice", 1)
}

// go test -v --run TestResolverCacheExpires
func TestResolverCacheExpires(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "ETHUSDT").Return(dec("2500"), nil).Once()
	ticker.On("TickerPrice", mock.Anything, "ETHUSDT").Return(dec("2600"), nil).Once()

	r, now := newTestResolver(ticker)
	ctx := context.Background()

	assert.Equal(t, "2500", r.Price(ctx, "ETH").String())
	*now = now.Add(5 * time.Minute)
	assert.Equal(t, "2600", r.Price(ctx, "ETH").String())

	ticker.AssertExpectations(t)
}

// go test -v --run TestResolverBridgeFallback
func TestResolverBridgeFallback(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "HAEDALUSDT").Return(decimal.Zero, errInvalidSymbol)
	ticker.On("TickerPrice", mock.Anything, "HAEDALBTC").Return(dec("0.00000213"), nil)
	ticker.On("TickerPrice", mock.Anything, "BTCUSDT").Return(dec("64123.45"), nil)

	r, _ := newTestResolver(ticker)
	price, err := r.Resolve(context.Background(), "HAEDAL")
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("0.00000213").Mul(dec("64123.45"))), "got %s", price)

	// cached after the bridge route as well
	_, err = r.Resolve(context.Background(), "HAEDAL")
	require.NoError(t, err)
	ticker.AssertNumberOfCalls(t, "TickerPrice", 3)
}

// go test -v --run TestResolverBridgeSecondHopFails
func TestResolverBridgeSecondHopFails(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "FOOUSDT").Return(decimal.Zero, errInvalidSymbol)
	ticker.On("TickerPrice", mock.Anything, "FOOBTC").Return(dec("0.1"), nil)
	ticker.On("TickerPrice", mock.Anything, "BTCUSDT").Return(decimal.Zero, errors.New("timeout"))

	r, _ := newTestResolver(ticker)
	_, err := r.Resolve(context.Background(), "FOO")
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, 0, r.Cached())
}

// go test -v --run TestResolverTotalFailureReturnsZero
func TestResolverTotalFailureReturnsZero(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, mock.Anything).Return(decimal.Zero, errInvalidSymbol)

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewPriceResolver(ticker, nil, PricingConfig{}, zap.New(core))

	price := r.Price(context.Background(), "NOPE")
	assert.True(t, price.IsZero())
	assert.Equal(t, 0, r.Cached(), "failures are not cached")
	assert.Equal(t, 1, logs.FilterMessage("price unavailable, asset skipped").Len())
}

// go test -v --run TestResolverBridgeAssetHasNoSecondRoute
func TestResolverBridgeAssetHasNoSecondRoute(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "BTCUSDT").Return(decimal.Zero, errInvalidSymbol).Once()

	r, _ := newTestResolver(ticker)
	_, err := r.Resolve(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrNoPrice)
	ticker.AssertExpectations(t)
}

// go test -v --run TestResolverQuoteAssetIsOne
func TestResolverQuoteAssetIsOne(t *testing.T) {
	ticker := new(mockTicker)
	r, _ := newTestResolver(ticker)

	price, err := r.Resolve(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))
	ticker.AssertNotCalled(t, "TickerPrice", mock.Anything, mock.Anything)
}

// go test -v --run TestResolverObserveUsesLocalClock
func TestResolverObserveUsesLocalClock(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "BNBUSDT").Return(dec("600"), nil).Twice()
	r, now := newTestResolver(ticker)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "BNB")
	require.NoError(t, err)

	// exchange clock an hour behind: the update is still accepted
	*now = now.Add(time.Minute)
	assert.True(t, r.Observe("BNB", dec("610"), now.Add(-time.Hour)))

	// exchange clock an hour ahead: the entry still expires by the local TTL
	*now = now.Add(time.Minute)
	assert.True(t, r.Observe("BNB", dec("620"), now.Add(time.Hour)))

	*now = now.Add(4*time.Minute + 59*time.Second)
	price, err := r.Resolve(ctx, "BNB")
	require.NoError(t, err)
	assert.Equal(t, "620", price.String())

	*now = now.Add(2 * time.Second)
	price, err = r.Resolve(ctx, "BNB")
	require.NoError(t, err)
	assert.Equal(t, "600", price.String())
	ticker.AssertNumberOfCalls(t, "TickerPrice", 2)
}

// go test -v --run TestResolverObserve
func TestResolverObserve(t *testing.T) {
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "SOLUSDT").Return(dec("140"), nil).Once()
	r, now := newTestResolver(ticker)

	assert.False(t, r.Observe("ARB", dec("1"), *now), "assets never priced are not tracked")
	_, err := r.Resolve(context.Background(), "SOL")
	require.NoError(t, err)

	*now = now.Add(4 * time.Minute)
	assert.True(t, r.Observe("SOL", dec("150"), *now))
	assert.False(t, r.Observe("SOL", dec("130"), now.Add(-time.Minute)), "older observation ignored")
	assert.False(t, r.Observe("SOL", decimal.Zero, now.Add(time.Second)))
	assert.False(t, r.Observe("USDT", dec("1"), *now))

	// the refreshed entry keeps the price warm past the original TTL
	*now = now.Add(3 * time.Minute)
	price, err := r.Resolve(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, "150", price.String())
	ticker.AssertNumberOfCalls(t, "TickerPrice", 1)
	assert.Equal(t, 1, r.Cached())
}

// go test -v --run TestResolverCancelledContext
func TestResolverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := new(mockTicker)
	ticker.On("TickerPrice", mock.Anything, "ETHUSDT").Run(func(mock.Arguments) { cancel() }).
		Return(decimal.Zero, context.Canceled)

	r, _ := newTestResolver(ticker)
	_, err := r.Resolve(ctx, "ETH")
	assert.ErrorIs(t, err, context.Canceled)
	ticker.AssertNumberOfCalls(t, "TickerPrice", 1)
}

// go test -v --run TestResolverOverHTTPUsesCache
func TestResolverOverHTTPUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `{"symbol":%q,"price":"42.00000000"}`, r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	client, err := binance.NewClient(srv.URL, binance.Credentials{APIKey: "k", APISecret: "s"}, time.Second, nil)
	require.NoError(t, err)

	r := NewPriceResolver(client, nil, PricingConfig{TTL: time.Minute}, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "42", r.Price(context.Background(), "ARB").String())
	}
	assert.Equal(t, int32(1), hits.Load())
}
