package binance

import (
	"context"
	"fmt"
	"strconv"
)

// maxPositionPages bounds pagination in case the reported total is wrong.
const maxPositionPages = 50

// Positions fetches one page of earn positions. asset may be empty.
func (c *Client) Positions(ctx context.Context, product ProductType, asset string, page, size int,
	policy RetryPolicy) (*PositionsResponse, error) {
	path, err := product.path()
	if err != nil {
		return nil, err
	}
	if size <= 0 || size > maxPositionsPage {
		size = maxPositionsPage
	}

	var params Params
	if asset != "" {
		params = params.Add("asset", asset)
	}
	params = params.Add("current", strconv.Itoa(page)).Add("size", strconv.Itoa(size))

	resp, err := c.SignedGet(ctx, path, params, policy)
	if err != nil {
		return nil, err
	}

	var out PositionsResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllPositions walks every page of a product endpoint using BulkPolicy.
// A failure on any page fails the whole listing.
func (c *Client) AllPositions(ctx context.Context, product ProductType, size int) ([]EarnPosition, error) {
	var rows []EarnPosition
	for page := 1; page <= maxPositionPages; page++ {
		out, err := c.Positions(ctx, product, "", page, size, BulkPolicy)
		if err != nil {
			return nil, fmt.Errorf("%s positions page %d: %w", product, page, err)
		}
		rows = append(rows, out.Rows...)
		if len(out.Rows) == 0 || len(rows) >= out.Total {
			break
		}
	}
	return rows, nil
}

// AssetPositions looks up the positions of a single asset using TargetedPolicy.
func (c *Client) AssetPositions(ctx context.Context, product ProductType, asset string) ([]EarnPosition, error) {
	out, err := c.Positions(ctx, product, asset, 1, maxPositionsPage, TargetedPolicy)
	if err != nil {
		return nil, fmt.Errorf("%s positions for %s: %w", product, asset, err)
	}
	return out.Rows, nil
}
