package portfolio

import (
	"context"
	"sync"

	"cryptofolio/pkg/binance"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// mockTicker is a testify mock of TickerClient.
type mockTicker struct {
	mock.Mock
}

func (m *mockTicker) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// fakePricer prices from a fixed table; unknown assets get zero.
type fakePricer struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  map[string]int
}

func newFakePricer(prices map[string]string) *fakePricer {
	p := &fakePricer{prices: map[string]decimal.Decimal{}, calls: map[string]int{}}
	for k, v := range prices {
		p.prices[k] = dec(v)
	}
	return p
}

func (p *fakePricer) Price(ctx context.Context, asset string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[asset]++
	return p.prices[asset]
}

type fakeAccount struct {
	resp *binance.AccountResponse
	err  error
}

func (f *fakeAccount) Account(ctx context.Context) (*binance.AccountResponse, error) {
	return f.resp, f.err
}

// fakeEarn serves canned earn listings and records per-asset lookups.
type fakeEarn struct {
	bulk      map[binance.ProductType][]binance.EarnPosition
	bulkErr   map[binance.ProductType]error
	perAsset  map[binance.ProductType]map[string][]binance.EarnPosition
	assetErr  map[string]error
	mu        sync.Mutex
	lookedUp  []string
	bulkCalls int
}

func (f *fakeEarn) AllPositions(ctx context.Context, product binance.ProductType, size int) ([]binance.EarnPosition, error) {
	f.mu.Lock()
	f.bulkCalls++
	f.mu.Unlock()
	if err := f.bulkErr[product]; err != nil {
		return nil, err
	}
	return f.bulk[product], nil
}

func (f *fakeEarn) AssetPositions(ctx context.Context, product binance.ProductType, asset string) ([]binance.EarnPosition, error) {
	f.mu.Lock()
	f.lookedUp = append(f.lookedUp, string(product)+":"+asset)
	f.mu.Unlock()
	if err := f.assetErr[asset]; err != nil {
		return nil, err
	}
	return f.perAsset[product][asset], nil
}

func (f *fakeEarn) lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lookedUp...)
}

func flexRow(asset, amount, rate string) binance.EarnPosition {
	return binance.EarnPosition{Asset: asset, TotalAmount: amount, LatestAnnualPercentageRate: rate}
}

func lockedRow(asset, amount, apy string) binance.EarnPosition {
	return binance.EarnPosition{Asset: asset, Amount: amount, APY: apy}
}

// fakeSource is a BalanceSource returning fixed results.
type fakeSource struct {
	silo     Source
	holdings []Holding
	err      error
	block    bool
}

func (s *fakeSource) Silo() Source { return s.silo }

func (s *fakeSource) Fetch(ctx context.Context) ([]Holding, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.holdings, s.err
}

func spot(asset, qty, price string) Holding {
	return Holding{Asset: asset, Quantity: dec(qty), Price: dec(price), Source: SourceLiquidWallet, Subtype: SubtypeSpot}
}

func earn(asset, qty, price string, subtype Subtype) Holding {
	return Holding{Asset: asset, Quantity: dec(qty), Price: dec(price), Source: SourceYieldProduct, Subtype: subtype}
}
