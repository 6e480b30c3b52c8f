package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptofolio/internal/memorystore"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoPrice means neither the direct pair nor the bridge route produced a price.
var ErrNoPrice = errors.New("no price")

const (
	DefaultQuoteAsset  = "USDT"
	DefaultBridgeAsset = "BTC"
	DefaultPriceTTL    = 5 * time.Minute
)

// TickerClient returns the last traded price of a symbol pair such as "ETHUSDT".
type TickerClient interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Pricer is what balance sources need from the resolver. A zero price means
// the asset could not be priced and must be skipped.
type Pricer interface {
	Price(ctx context.Context, asset string) decimal.Decimal
}

type PricingConfig struct {
	QuoteAsset  string
	BridgeAsset string
	TTL         time.Duration
}

// PriceResolver prices assets in the quote asset, directly or through the
// bridge asset, and caches results for TTL.
type PriceResolver struct {
	client TickerClient
	store  *memorystore.PriceStore
	quote  string
	bridge string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewPriceResolver(client TickerClient, store *memorystore.PriceStore, cfg PricingConfig, logger *zap.Logger) *PriceResolver {
	if store == nil {
		store = memorystore.NewPriceStore()
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = DefaultQuoteAsset
	}
	if cfg.BridgeAsset == "" {
		cfg.BridgeAsset = DefaultBridgeAsset
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPriceTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceResolver{
		client: client,
		store:  store,
		quote:  cfg.QuoteAsset,
		bridge: cfg.BridgeAsset,
		ttl:    cfg.TTL,
		now:    time.Now,
		logger: logger,
	}
}

func (r *PriceResolver) QuoteAsset() string { return r.quote }

// Price returns the unit price of asset, or zero if it cannot be resolved.
// Failures are logged, never returned.
func (r *PriceResolver) Price(ctx context.Context, asset string) decimal.Decimal {
	price, err := r.Resolve(ctx, asset)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("price unavailable, asset skipped", zap.String("asset", asset), zap.Error(err))
		}
		return decimal.Zero
	}
	return price
}

// Resolve returns the unit price of asset in the quote asset.
func (r *PriceResolver) Resolve(ctx context.Context, asset string) (decimal.Decimal, error) {
	if asset == r.quote {
		return decimal.NewFromInt(1), nil
	}

	now := r.now()
	if e, ok := r.store.Get(asset); ok && e.Age(now) < r.ttl {
		return e.Price, nil
	}

	price, directErr := r.client.TickerPrice(ctx, asset+r.quote)
	if directErr != nil {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}
		if asset == r.bridge {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrNoPrice, asset, directErr)
		}

		var bridgeErr error
		price, bridgeErr = r.viaBridge(ctx, asset)
		if bridgeErr != nil {
			if err := ctx.Err(); err != nil {
				return decimal.Zero, err
			}
			return decimal.Zero, fmt.Errorf("%w: %s: direct: %v; via %s: %v",
				ErrNoPrice, asset, directErr, r.bridge, bridgeErr)
		}
		r.logger.Debug("priced via bridge", zap.String("asset", asset), zap.String("bridge", r.bridge),
			zap.Stringer("price", price))
	}

	r.store.Put(asset, memorystore.PriceEntry{Price: price, FetchedAt: now})
	return price, nil
}

func (r *PriceResolver) viaBridge(ctx context.Context, asset string) (decimal.Decimal, error) {
	inBridge, err := r.client.TickerPrice(ctx, asset+r.bridge)
	if err != nil {
		return decimal.Zero, err
	}
	bridgePrice, err := r.client.TickerPrice(ctx, r.bridge+r.quote)
	if err != nil {
		return decimal.Zero, err
	}
	return inBridge.Mul(bridgePrice), nil
}

// Observe refreshes the cached price of an asset the resolver has already
// priced, e.g. from a market stream. The entry is stamped with the local clock;
// eventTime only orders stream updates. Unknown assets, non-positive prices
// and events older than the cached one are ignored.
func (r *PriceResolver) Observe(asset string, price decimal.Decimal, eventTime time.Time) bool {
	if asset == "" || asset == r.quote || !price.IsPositive() {
		return false
	}
	return r.store.Refresh(asset, memorystore.PriceEntry{Price: price, FetchedAt: r.now(), EventTime: eventTime})
}

// Cached returns the number of assets with a cached price.
func (r *PriceResolver) Cached() int {
	return r.store.CountAll()
}
