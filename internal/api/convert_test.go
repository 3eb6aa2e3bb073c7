package api

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.01", "0.01"},
		{"0.00001000", "0.00001"},
		{"100", "100"},
		{"", "0"},
		{"invalid", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDecimal(tt.input)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseDecimal(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMillis(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"1585526400000", time.Date(2020, 3, 30, 0, 0, 0, 0, time.UTC)},
		{"0", time.Unix(0, 0).UTC()},
		{"", time.Time{}},
		{"soon", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseMillis(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("ParseMillis(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInstrumentFromAPI(t *testing.T) {
	var raw APIInstrument
	raw.Symbol = "BTCUSDT"
	raw.Status = StatusTrading
	raw.BaseCoin = "BTC"
	raw.QuoteCoin = "USDT"
	raw.PriceFilter.TickSize = "0.10"
	raw.LotSizeFilter.BasePrecision = "0.000001"
	raw.LotSizeFilter.MinOrderQty = "0.000048"

	inst := InstrumentFromAPI("spot", raw)

	if inst.Category != "spot" || inst.Symbol != "BTCUSDT" {
		t.Errorf("Category/Symbol = %s/%s, want spot/BTCUSDT", inst.Category, inst.Symbol)
	}
	if !inst.TickSize.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("TickSize = %s, want 0.1", inst.TickSize)
	}
	// spot falls back to basePrecision
	if !inst.QtyStep.Equal(decimal.RequireFromString("0.000001")) {
		t.Errorf("QtyStep = %s, want 0.000001", inst.QtyStep)
	}
	if !inst.Trading() {
		t.Error("Trading() = false, want true")
	}

	raw.LotSizeFilter.QtyStep = "0.001"
	raw.Status = StatusPreLaunch
	inst = InstrumentFromAPI("linear", raw)
	if !inst.QtyStep.Equal(decimal.RequireFromString("0.001")) {
		t.Errorf("QtyStep = %s, want 0.001", inst.QtyStep)
	}
	if inst.Trading() {
		t.Error("Trading() = true for PreLaunch")
	}
}
