package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ServerTime fetches the exchange clock. Used as a connectivity check.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	resp, err := c.PublicGet(ctx, pathServerTime, nil, SinglePolicy)
	if err != nil {
		return time.Time{}, err
	}
	var out ServerTimeResponse
	if err := decode(resp, &out); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(out.ServerTime), nil
}

// TickerPrice returns the last traded price of symbol (e.g. "ETHUSDT").
func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := Params{}.Add("symbol", symbol)
	resp, err := c.PublicGet(ctx, pathTickerPrice, params, c.tickerPolicy)
	if err != nil {
		return decimal.Zero, err
	}

	var out TickerPriceResponse
	if err := decode(resp, &out); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q for %s: %w", out.Price, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}
	return price, nil
}
