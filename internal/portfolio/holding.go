package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Source is the account silo a holding was read from.
type Source string

const (
	SourceLiquidWallet Source = "Spot"
	SourceYieldProduct Source = "Simple Earn"
)

func (s Source) String() string { return string(s) }

func (s Source) IsValid() bool {
	return s == SourceLiquidWallet || s == SourceYieldProduct
}

// Subtype is the product a holding sits in within its silo.
type Subtype string

const (
	SubtypeSpot     Subtype = "Spot"
	SubtypeFlexible Subtype = "Flexible"
	SubtypeLocked   Subtype = "Locked"
)

func (s Subtype) String() string { return string(s) }

func (s Subtype) IsValid() bool {
	switch s {
	case SubtypeSpot, SubtypeFlexible, SubtypeLocked:
		return true
	}
	return false
}

// ErrInvalidHolding is wrapped by every validation failure.
var ErrInvalidHolding = errors.New("invalid holding")

var hundred = decimal.NewFromInt(100)

// Holding is one priced asset position. Price is in the quote asset.
type Holding struct {
	Asset     string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Source    Source
	Subtype   Subtype
	YieldRate decimal.Decimal // annualized, percent
}

// Value is Quantity × Price, computed on every call.
func (h Holding) Value() decimal.Decimal {
	return h.Quantity.Mul(h.Price)
}

func (h Holding) String() string {
	return fmt.Sprintf("%s %s @ %s (%s/%s)", h.Asset, h.Quantity, h.Price, h.Source, h.Subtype)
}

// Validate checks the holding invariants.
func (h Holding) Validate() error {
	switch {
	case strings.TrimSpace(h.Asset) == "":
		return fmt.Errorf("%w: missing asset", ErrInvalidHolding)
	case !h.Source.IsValid():
		return fmt.Errorf("%w: %s: unknown source %q", ErrInvalidHolding, h.Asset, h.Source)
	case !h.Subtype.IsValid():
		return fmt.Errorf("%w: %s: unknown subtype %q", ErrInvalidHolding, h.Asset, h.Subtype)
	case !h.Quantity.IsPositive():
		return fmt.Errorf("%w: %s: quantity %s is not positive", ErrInvalidHolding, h.Asset, h.Quantity)
	case !h.Price.IsPositive():
		return fmt.Errorf("%w: %s: price %s is not positive", ErrInvalidHolding, h.Asset, h.Price)
	case !h.Value().IsPositive():
		return fmt.Errorf("%w: %s: value %s is not positive", ErrInvalidHolding, h.Asset, h.Value())
	case h.YieldRate.IsNegative():
		return fmt.Errorf("%w: %s: yield rate %s is negative", ErrInvalidHolding, h.Asset, h.YieldRate)
	}
	return nil
}

// parseAmount parses a decimal string from the exchange. Empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
