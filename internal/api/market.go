package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// MaxInstrumentsPageSize is the largest page instruments-info returns.
const MaxInstrumentsPageSize = 1000

// GetServerTime returns the exchange clock.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp ServerTimeResponse
	if err := c.get(ctx, "/v5/market/time", nil, false, &resp); err != nil {
		return time.Time{}, fmt.Errorf("get server time: %w", err)
	}

	nanos, err := strconv.ParseInt(resp.TimeNano, 10, 64)
	if err != nil {
		secs, serr := strconv.ParseInt(resp.TimeSecond, 10, 64)
		if serr != nil {
			return time.Time{}, fmt.Errorf("parse server time %q: %w", resp.TimeSecond, serr)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Unix(0, nanos).UTC(), nil
}

// GetInstrumentsPage fetches one page of instruments.
func (c *Client) GetInstrumentsPage(ctx context.Context, opts GetInstrumentsOptions) (*InstrumentsResponse, error) {
	query := url.Values{}
	query.Set("category", opts.Category)

	if opts.Symbol != "" {
		query.Set("symbol", opts.Symbol)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.BaseCoin != "" {
		query.Set("baseCoin", opts.BaseCoin)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp InstrumentsResponse
	if err := c.get(ctx, "/v5/market/instruments-info", query, false, &resp); err != nil {
		return nil, fmt.Errorf("get instruments %s: %w", opts.Category, err)
	}

	return &resp, nil
}

// GetInstruments fetches all instruments of a category by paginating
// through results.
func (c *Client) GetInstruments(ctx context.Context, category string) ([]Instrument, error) {
	var all []Instrument
	opts := GetInstrumentsOptions{Category: category, Limit: MaxInstrumentsPageSize}

	for {
		resp, err := c.GetInstrumentsPage(ctx, opts)
		if err != nil {
			return nil, err
		}

		for _, raw := range resp.List {
			all = append(all, InstrumentFromAPI(category, raw))
		}

		if resp.NextPageCursor == "" || resp.NextPageCursor == opts.Cursor {
			break
		}
		opts.Cursor = resp.NextPageCursor
	}

	return all, nil
}

// GetSymbols returns the symbols of a category that are currently trading.
func (c *Client) GetSymbols(ctx context.Context, category string) ([]string, error) {
	instruments, err := c.GetInstruments(ctx, category)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if inst.Trading() {
			symbols = append(symbols, inst.Symbol)
		}
	}
	return symbols, nil
}
