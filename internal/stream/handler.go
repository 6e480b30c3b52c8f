package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"cryptofolio/pkg/binance"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceObserver accepts prices seen on the market stream.
type PriceObserver interface {
	Observe(asset string, price decimal.Decimal, eventTime time.Time) bool
}

// MakeMessageHandler returns a function that handles incoming WebSocket messages
// by parsing mini ticker arrays and feeding quote-denominated prices to observer.
func MakeMessageHandler(logger *zap.Logger, observer PriceObserver, quote string) func(msg []byte) {
	return func(msg []byte) {
		// Step 1: ticker payloads are arrays; subscription acks are objects
		trimmed := bytes.TrimLeft(msg, " \t\r\n")
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return
		}

		// Step 2: parse the ticker array
		var tickers []binance.MiniTicker
		if err := json.Unmarshal(trimmed, &tickers); err != nil {
			logger.Warn("failed to parse mini ticker payload", zap.Error(err))
			return
		}

		// Step 3: refresh prices for quote pairs
		refreshed := 0
		for _, tk := range tickers {
			asset, ok := baseAsset(tk.Symbol, quote)
			if !ok {
				continue
			}
			price, err := decimal.NewFromString(tk.Close)
			if err != nil {
				logger.Debug("bad ticker price", zap.String("symbol", tk.Symbol), zap.String("price", tk.Close))
				continue
			}
			if observer.Observe(asset, price, time.UnixMilli(tk.EventTime)) {
				refreshed++
			}
		}
		if refreshed > 0 {
			logger.Debug("prices refreshed from stream", zap.Int("count", refreshed))
		}
	}
}

// baseAsset extracts the base asset from a symbol like "BTCUSDT" given quote "USDT".
func baseAsset(symbol, quote string) (string, bool) {
	if quote == "" || len(symbol) <= len(quote) || !strings.HasSuffix(symbol, quote) {
		return "", false
	}
	return strings.TrimSuffix(symbol, quote), true
}
