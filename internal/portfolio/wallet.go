package portfolio

import (
	"context"
	"fmt"
	"strings"

	"cryptofolio/pkg/binance"

	"go.uber.org/zap"
)

// DefaultSkipPrefixes marks wrapped earn receipts ("LDBTC") that mirror a
// position already reported by the earn endpoints.
var DefaultSkipPrefixes = []string{"LD"}

// BalanceSource reads one account silo.
type BalanceSource interface {
	Silo() Source
	// Fetch returns the priced holdings of the silo. An error means the whole
	// silo could not be read, except a *PartialError, which comes with usable
	// holdings. Per-asset problems are logged and skipped.
	Fetch(ctx context.Context) ([]Holding, error)
}

type AccountClient interface {
	Account(ctx context.Context) (*binance.AccountResponse, error)
}

// LiquidWallet reads the spot wallet.
type LiquidWallet struct {
	client       AccountClient
	prices       Pricer
	skipPrefixes []string
	logger       *zap.Logger
}

func NewLiquidWallet(client AccountClient, prices Pricer, skipPrefixes []string, logger *zap.Logger) *LiquidWallet {
	if skipPrefixes == nil {
		skipPrefixes = DefaultSkipPrefixes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiquidWallet{
		client:       client,
		prices:       prices,
		skipPrefixes: skipPrefixes,
		logger:       logger.With(zap.Stringer("source", SourceLiquidWallet)),
	}
}

func (w *LiquidWallet) Silo() Source { return SourceLiquidWallet }

func (w *LiquidWallet) Fetch(ctx context.Context) ([]Holding, error) {
	account, err := w.client.Account(ctx)
	if err != nil {
		w.logger.Error("failed to load spot account", zap.Error(err))
		return nil, fmt.Errorf("liquid wallet: %w", err)
	}

	var out []Holding
	for _, b := range account.Balances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.skipped(b.Asset) {
			continue
		}

		free, err := parseAmount(b.Free)
		if err != nil {
			w.logger.Warn("malformed free balance", zap.String("asset", b.Asset), zap.String("free", b.Free), zap.Error(err))
			continue
		}
		locked, err := parseAmount(b.Locked)
		if err != nil {
			w.logger.Warn("malformed locked balance", zap.String("asset", b.Asset), zap.String("locked", b.Locked), zap.Error(err))
			continue
		}
		total := free.Add(locked)
		if !total.IsPositive() {
			continue
		}

		price := w.prices.Price(ctx, b.Asset)
		if price.IsZero() {
			continue
		}

		out = append(out, Holding{
			Asset:    b.Asset,
			Quantity: total,
			Price:    price,
			Source:   SourceLiquidWallet,
			Subtype:  SubtypeSpot,
		})
	}

	w.logger.Info("spot holdings loaded", zap.Int("count", len(out)))
	return out, nil
}

func (w *LiquidWallet) skipped(asset string) bool {
	for _, p := range w.skipPrefixes {
		if p != "" && strings.HasPrefix(asset, p) {
			return true
		}
	}
	return false
}
