package binance

import "fmt"

// APIError is the error envelope Binance returns alongside non-2xx statuses.
type APIError struct {
	Code int    `json:"code"` // negative Binance error code, e.g. -1022 for an invalid signature
	Msg  string `json:"msg"`  // human-readable description
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d: %s", e.Code, e.Msg)
}

// StatusError is returned when a request completes with a status other than 200.
type StatusError struct {
	StatusCode int
	Body       []byte
	API        *APIError // decoded error envelope, nil if the body was not one
}

func (e *StatusError) Error() string {
	if e.API != nil {
		return fmt.Sprintf("binance error: status %d: %s", e.StatusCode, e.API.Error())
	}
	return fmt.Sprintf("binance error: status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	return e.API
}

// Response is the raw result of a successful REST call.
type Response struct {
	StatusCode int
	Body       []byte
}

type ServerTimeResponse struct {
	ServerTime int64 `json:"serverTime"` // milliseconds since epoch
}

// Balance is one asset line of the spot account. Amounts stay as the decimal
// strings Binance sends; callers parse them.
type Balance struct {
	Asset  string `json:"asset"`  // e.g. "BTC"
	Free   string `json:"free"`   // available amount
	Locked string `json:"locked"` // amount held by open orders
}

type AccountResponse struct {
	AccountType string    `json:"accountType"` // e.g. "SPOT"
	UpdateTime  int64     `json:"updateTime"`
	Balances    []Balance `json:"balances"`
}

// EarnPosition is a Simple Earn position row. Flexible and locked endpoints
// use slightly different field names for the amount and the rate.
type EarnPosition struct {
	Asset                      string `json:"asset"`
	TotalAmount                string `json:"totalAmount"`                // flexible
	Amount                     string `json:"amount"`                     // locked
	LatestAnnualPercentageRate string `json:"latestAnnualPercentageRate"` // flexible, fraction (0.05 = 5%)
	APY                        string `json:"APY"`                        // locked, fraction
	ProductID                  string `json:"productId"`
	PositionID                 any    `json:"positionId"` // number on locked, absent on flexible
}

// Quantity returns the held amount whichever endpoint the row came from.
func (p EarnPosition) Quantity() string {
	if p.TotalAmount != "" {
		return p.TotalAmount
	}
	return p.Amount
}

// Rate returns the reported annual rate as a fraction, or "" if none was sent.
func (p EarnPosition) Rate() string {
	if p.LatestAnnualPercentageRate != "" {
		return p.LatestAnnualPercentageRate
	}
	return p.APY
}

type PositionsResponse struct {
	Rows  []EarnPosition `json:"rows"`
	Total int            `json:"total"`
}

type TickerPriceResponse struct {
	Symbol string `json:"symbol"` // e.g. "BTCUSDT"
	Price  string `json:"price"`
}

// MiniTicker is one entry of the !miniTicker@arr stream.
type MiniTicker struct {
	EventType string `json:"e"` // "24hrMiniTicker"
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"` // last price
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Quote     string `json:"q"`
}
