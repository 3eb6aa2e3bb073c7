package wire

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Kline is one candle from a kline.{interval}.{symbol} topic.
type Kline struct {
	Start     int64           `json:"start"`
	End       int64           `json:"end"`
	Interval  string          `json:"interval"`
	Open      decimal.Decimal `json:"open"`
	Close     decimal.Decimal `json:"close"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    decimal.Decimal `json:"volume"`
	Turnover  decimal.Decimal `json:"turnover"`
	Confirm   bool            `json:"confirm"`
	Timestamp int64           `json:"timestamp"`
}

// Ticker is a tickers.{symbol} payload. Delta frames carry only changed
// fields, so absent prices are left invalid.
type Ticker struct {
	Symbol       string              `json:"symbol"`
	LastPrice    decimal.NullDecimal `json:"lastPrice"`
	MarkPrice    decimal.NullDecimal `json:"markPrice"`
	IndexPrice   decimal.NullDecimal `json:"indexPrice"`
	Bid1Price    decimal.NullDecimal `json:"bid1Price"`
	Ask1Price    decimal.NullDecimal `json:"ask1Price"`
	HighPrice24h decimal.NullDecimal `json:"highPrice24h"`
	LowPrice24h  decimal.NullDecimal `json:"lowPrice24h"`
	Volume24h    decimal.NullDecimal `json:"volume24h"`
	Turnover24h  decimal.NullDecimal `json:"turnover24h"`
	Price24hPcnt decimal.NullDecimal `json:"price24hPcnt"`
}

// Trade is one entry of a publicTrade.{symbol} payload.
type Trade struct {
	Timestamp  int64           `json:"T"`
	Symbol     string          `json:"s"`
	Side       string          `json:"S"`
	Size       decimal.Decimal `json:"v"`
	Price      decimal.Decimal `json:"p"`
	TradeID    string          `json:"i"`
	BlockTrade bool            `json:"BT"`
}

// Channel returns the topic without its symbol, e.g. "kline.1".
func (f Frame) Channel() string {
	if i := strings.LastIndexByte(f.Topic, '.'); i >= 0 {
		return f.Topic[:i]
	}
	return f.Topic
}

// Symbol returns the last topic segment, e.g. "BTCUSDT".
func (f Frame) Symbol() string {
	if i := strings.LastIndexByte(f.Topic, '.'); i >= 0 {
		return f.Topic[i+1:]
	}
	return ""
}

// IsSnapshot reports whether the frame replaces state rather than patching it.
func (f Frame) IsSnapshot() bool {
	return f.Type == "snapshot"
}

// Klines decodes a kline frame.
func (f Frame) Klines() ([]Kline, error) {
	if !strings.HasPrefix(f.Topic, "kline.") {
		return nil, fmt.Errorf("topic %q is not a kline topic", f.Topic)
	}
	var out []Kline
	if err := json.Unmarshal(f.Data, &out); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	return out, nil
}

// Ticker decodes a tickers frame.
func (f Frame) Ticker() (Ticker, error) {
	if !strings.HasPrefix(f.Topic, "tickers.") {
		return Ticker{}, fmt.Errorf("topic %q is not a tickers topic", f.Topic)
	}
	var out Ticker
	if err := json.Unmarshal(f.Data, &out); err != nil {
		return Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	return out, nil
}

// Trades decodes a publicTrade frame.
func (f Frame) Trades() ([]Trade, error) {
	if !strings.HasPrefix(f.Topic, "publicTrade.") {
		return nil, fmt.Errorf("topic %q is not a publicTrade topic", f.Topic)
	}
	var out []Trade
	if err := json.Unmarshal(f.Data, &out); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	return out, nil
}
