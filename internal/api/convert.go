package api

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is a normalized instrument with decimal price and size filters.
type Instrument struct {
	Category    string
	Symbol      string
	Status      string
	BaseCoin    string
	QuoteCoin   string
	TickSize    decimal.Decimal
	QtyStep     decimal.Decimal
	MinOrderQty decimal.Decimal
	LaunchTime  time.Time
}

// Trading reports whether the instrument is open for trading.
func (i Instrument) Trading() bool {
	return i.Status == StatusTrading
}

// InstrumentFromAPI converts an API instrument. Spot instruments carry their
// quantity step as basePrecision.
func InstrumentFromAPI(category string, raw APIInstrument) Instrument {
	step := raw.LotSizeFilter.QtyStep
	if step == "" {
		step = raw.LotSizeFilter.BasePrecision
	}

	return Instrument{
		Category:    category,
		Symbol:      raw.Symbol,
		Status:      raw.Status,
		BaseCoin:    raw.BaseCoin,
		QuoteCoin:   raw.QuoteCoin,
		TickSize:    ParseDecimal(raw.PriceFilter.TickSize),
		QtyStep:     ParseDecimal(step),
		MinOrderQty: ParseDecimal(raw.LotSizeFilter.MinOrderQty),
		LaunchTime:  ParseMillis(raw.LaunchTime),
	}
}

// ParseDecimal parses a decimal string. Returns zero for empty or invalid
// input.
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseMillis parses a millisecond epoch string. Returns the zero time for
// empty or invalid input.
func ParseMillis(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
