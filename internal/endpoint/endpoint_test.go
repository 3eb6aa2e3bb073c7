package endpoint

import (
	"errors"
	"testing"
)

func TestNew_URI(t *testing.T) {
	tests := []struct {
		exchange string
		category string
		want     string
	}{
		{"bybit.com", "spot", "wss://stream.bybit.com/v5/public/spot"},
		{"bybit.com", "linear", "wss://stream.bybit.com/v5/public/linear"},
		{"bybit.com", "inverse", "wss://stream.bybit.com/v5/public/inverse"},
		{"bybit.com", "option", "wss://stream.bybit.com/v5/public/option"},
		{"bybit.com", "private", "wss://stream.bybit.com/v5/private"},
		{"bybit.com-testnet", "LINEAR", "wss://stream-testnet.bybit.com/v5/public/linear"},
	}

	for _, tt := range tests {
		ep, err := New(tt.exchange, tt.category)
		if err != nil {
			t.Fatalf("New(%q, %q) error: %v", tt.exchange, tt.category, err)
		}
		if got := ep.URI(); got != tt.want {
			t.Errorf("URI() = %q, want %q", got, tt.want)
		}
	}
}

func TestNew_UnknownExchange(t *testing.T) {
	_, err := New("binance.com", "spot")
	if !errors.Is(err, ErrUnknownExchange) {
		t.Errorf("New() error = %v, want %v", err, ErrUnknownExchange)
	}
}

func TestNew_UnknownCategory(t *testing.T) {
	_, err := New("bybit.com", "futures")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("New() error = %v, want %v", err, ErrUnknownCategory)
	}
}

func TestEndpoint_BaseURIOverride(t *testing.T) {
	ep := Endpoint{Exchange: Bybit, Category: Linear, BaseURI: "ws://127.0.0.1:8765/"}
	if got := ep.URI(); got != "ws://127.0.0.1:8765/v5/public/linear" {
		t.Errorf("URI() = %q", got)
	}
}

func TestCategory_Properties(t *testing.T) {
	if !Private.IsPrivate() || Spot.IsPrivate() {
		t.Error("IsPrivate mismatch")
	}
	if Spot.MaxArgsPerRequest() != 10 {
		t.Errorf("Spot.MaxArgsPerRequest() = %d, want 10", Spot.MaxArgsPerRequest())
	}
	if Linear.MaxArgsPerRequest() != 350 {
		t.Errorf("Linear.MaxArgsPerRequest() = %d, want 350", Linear.MaxArgsPerRequest())
	}
	if !BybitTestnet.IsTestnet() || Bybit.IsTestnet() {
		t.Error("IsTestnet mismatch")
	}
	if Bybit.RestURL() != "https://api.bybit.com" {
		t.Errorf("RestURL() = %q", Bybit.RestURL())
	}
}
