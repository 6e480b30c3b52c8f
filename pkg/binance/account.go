package binance

import "context"

// Account lists the spot wallet balances, omitting zero lines.
func (c *Client) Account(ctx context.Context) (*AccountResponse, error) {
	params := Params{}.Add("omitZeroBalances", "true")
	resp, err := c.SignedGet(ctx, pathAccount, params, BulkPolicy)
	if err != nil {
		return nil, err
	}

	var out AccountResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
