package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"cryptofolio/pkg/binance"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultTargetedConcurrency = 4

type EarnClient interface {
	AllPositions(ctx context.Context, product binance.ProductType, size int) ([]binance.EarnPosition, error)
	AssetPositions(ctx context.Context, product binance.ProductType, asset string) ([]binance.EarnPosition, error)
}

type YieldOptions struct {
	// KnownAssets are looked up one by one when the bulk listing misses them.
	KnownAssets []string
	// Concurrency bounds the parallel per-asset lookups.
	Concurrency int
	// PageSize is the bulk listing page size (max 100).
	PageSize int
}

// YieldProduct reads the Simple Earn silo using bulk discovery, patched by
// targeted per-asset discovery for assets the bulk listing is known to miss.
type YieldProduct struct {
	client EarnClient
	prices Pricer
	opts   YieldOptions
	logger *zap.Logger
}

func NewYieldProduct(client EarnClient, prices Pricer, opts YieldOptions, logger *zap.Logger) *YieldProduct {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultTargetedConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YieldProduct{
		client: client,
		prices: prices,
		opts:   opts,
		logger: logger.With(zap.Stringer("source", SourceYieldProduct)),
	}
}

func (y *YieldProduct) Silo() Source { return SourceYieldProduct }

// PartialError is returned together with holdings when some parts of a silo
// could not be listed. The holdings are usable but the silo is not complete.
type PartialError struct {
	Source  Source
	Missing []Subtype
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s partially read, missing %v: %v", e.Source, e.Parts(), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Parts names the unread parts, e.g. "Simple Earn/Locked".
func (e *PartialError) Parts() []string {
	out := make([]string, len(e.Missing))
	for i, st := range e.Missing {
		out[i] = e.Source.String() + "/" + st.String()
	}
	return out
}

// Fetch fails only when every bulk listing failed and no targeted lookup
// succeeded. When some bulk listing failed otherwise, the holdings come back
// with a *PartialError.
func (y *YieldProduct) Fetch(ctx context.Context) ([]Holding, error) {
	bulk, failed, bulkErr := y.bulkDiscovery(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	missing := MissingAssets(y.opts.KnownAssets, bulk)
	var targeted []Holding
	var lookups int64
	if len(missing) > 0 {
		y.logger.Info("looking up assets missing from bulk listing", zap.Strings("assets", missing))
		targeted, lookups = y.targetedDiscovery(ctx, missing)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if len(failed) == len(binance.ProductTypes) && lookups == 0 {
		y.logger.Error("earn positions unavailable", zap.Error(bulkErr))
		return nil, fmt.Errorf("yield product: %w", bulkErr)
	}

	merged := Reconcile(bulk, targeted)
	y.logger.Info("earn holdings loaded",
		zap.Int("bulk", len(bulk)), zap.Int("targeted", len(targeted)), zap.Int("unique", len(merged)))

	if len(failed) > 0 {
		partial := &PartialError{Source: SourceYieldProduct, Err: bulkErr}
		for _, product := range failed {
			partial.Missing = append(partial.Missing, productSubtype(product))
		}
		y.logger.Warn("earn holdings incomplete", zap.Strings("missing", partial.Parts()))
		return merged, partial
	}
	return merged, nil
}

// bulkDiscovery lists every product endpoint in parallel. It returns the
// holdings of the listings that succeeded, the products that failed and
// their joined errors.
func (y *YieldProduct) bulkDiscovery(ctx context.Context) ([]Holding, []binance.ProductType, error) {
	products := binance.ProductTypes
	results := make([][]Holding, len(products))
	errs := make([]error, len(products))

	var g errgroup.Group
	for i, product := range products {
		g.Go(func() error {
			rows, err := y.client.AllPositions(ctx, product, y.opts.PageSize)
			if err != nil {
				y.logger.Warn("bulk earn listing failed", zap.String("product", string(product)), zap.Error(err))
				errs[i] = fmt.Errorf("%s listing: %w", product, err)
				return nil
			}
			results[i] = y.toHoldings(ctx, product, "", rows)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []Holding
		failed []binance.ProductType
	)
	for i, product := range products {
		if errs[i] != nil {
			failed = append(failed, product)
			continue
		}
		out = append(out, results[i]...)
	}
	return out, failed, errors.Join(errs...)
}

// targetedDiscovery queries every product for each asset. It returns the
// holdings found, in asset order, and how many lookups succeeded.
func (y *YieldProduct) targetedDiscovery(ctx context.Context, assets []string) ([]Holding, int64) {
	results := make([][]Holding, len(assets))
	var succeeded atomic.Int64

	var g errgroup.Group
	g.SetLimit(y.opts.Concurrency)
	for i, asset := range assets {
		g.Go(func() error {
			for _, product := range binance.ProductTypes {
				if ctx.Err() != nil {
					return nil
				}
				rows, err := y.client.AssetPositions(ctx, product, asset)
				if err != nil {
					y.logger.Warn("targeted earn lookup failed",
						zap.String("asset", asset), zap.String("product", string(product)), zap.Error(err))
					continue
				}
				succeeded.Add(1)
				results[i] = append(results[i], y.toHoldings(ctx, product, asset, rows)...)
			}
			if len(results[i]) == 0 {
				y.logger.Debug("asset not found in earn products", zap.String("asset", asset))
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []Holding
	for _, hs := range results {
		out = append(out, hs...)
	}
	return out, succeeded.Load()
}

// toHoldings prices the rows of one listing. When asset is set the rows come
// from a per-asset lookup and rows for other assets are ignored.
func (y *YieldProduct) toHoldings(ctx context.Context, product binance.ProductType, asset string,
	rows []binance.EarnPosition) []Holding {
	subtype := productSubtype(product)

	var out []Holding
	for _, row := range rows {
		symbol := row.Asset
		if asset != "" {
			if symbol != "" && symbol != asset {
				continue
			}
			symbol = asset
		}
		if symbol == "" {
			y.logger.Warn("earn row without asset", zap.String("product", string(product)))
			continue
		}

		qty, err := parseAmount(row.Quantity())
		if err != nil {
			y.logger.Warn("malformed earn amount", zap.String("asset", symbol), zap.String("amount", row.Quantity()), zap.Error(err))
			continue
		}
		if !qty.IsPositive() {
			continue
		}

		rate, err := parseAmount(row.Rate())
		if err != nil {
			y.logger.Warn("malformed earn rate, using 0", zap.String("asset", symbol), zap.String("rate", row.Rate()), zap.Error(err))
			rate = decimal.Zero
		}

		price := y.prices.Price(ctx, symbol)
		if price.IsZero() {
			continue
		}

		out = append(out, Holding{
			Asset:     symbol,
			Quantity:  qty,
			Price:     price,
			Source:    SourceYieldProduct,
			Subtype:   subtype,
			YieldRate: rate.Mul(hundred),
		})
	}
	return out
}

func productSubtype(product binance.ProductType) Subtype {
	if product == binance.ProductLocked {
		return SubtypeLocked
	}
	return SubtypeFlexible
}
