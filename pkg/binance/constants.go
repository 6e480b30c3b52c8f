package binance

import "fmt"

const (
	DefaultBaseURL = "https://api.binance.com"
	DefaultWSURL   = "wss://stream.binance.com:9443/ws"

	// APIKeyHeader carries the public API key on signed requests.
	APIKeyHeader = "X-MBX-APIKEY"

	pathServerTime   = "/api/v3/time"
	pathAccount      = "/api/v3/account"
	pathTickerPrice  = "/api/v3/ticker/price"
	pathFlexiblePos  = "/sapi/v1/simple-earn/flexible/position"
	pathLockedPos    = "/sapi/v1/simple-earn/locked/position"
	maxPositionsPage = 100

	// MiniTickerAllStream pushes the 24h rolling mini ticker for every symbol once per second.
	MiniTickerAllStream = "!miniTicker@arr"
)

// ProductType selects one of the Simple Earn product endpoints.
type ProductType string

const (
	ProductFlexible ProductType = "FLEXIBLE"
	ProductLocked   ProductType = "LOCKED"
)

// ProductTypes lists the earn products in discovery order.
var ProductTypes = []ProductType{ProductFlexible, ProductLocked}

var productPaths = map[ProductType]string{
	ProductFlexible: pathFlexiblePos,
	ProductLocked:   pathLockedPos,
}

// IsValid checks if the ProductType is one of the known earn products
func (p ProductType) IsValid() bool {
	_, ok := productPaths[p]
	return ok
}

func (p ProductType) path() (string, error) {
	path, ok := productPaths[p]
	if !ok {
		return "", fmt.Errorf("invalid ProductType: %s", p)
	}
	return path, nil
}
