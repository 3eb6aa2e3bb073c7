package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSubscribeFrame(t *testing.T) {
	data, err := SubscribeFrame("req-1", []string{"kline.1.BTCUSDT", "tickers.BTCUSDT"})
	if err != nil {
		t.Fatalf("SubscribeFrame error: %v", err)
	}

	want := `{"req_id":"req-1","op":"subscribe","args":["kline.1.BTCUSDT","tickers.BTCUSDT"]}`
	if string(data) != want {
		t.Errorf("SubscribeFrame = %s, want %s", data, want)
	}
}

func TestUnsubscribeFrame_Empty(t *testing.T) {
	_, err := UnsubscribeFrame("x", nil)
	if !errors.Is(err, ErrEmptyArgs) {
		t.Errorf("error = %v, want %v", err, ErrEmptyArgs)
	}
}

func TestAuthFrame(t *testing.T) {
	data, err := AuthFrame("", []any{"key", int64(1700000000000), "abc"})
	if err != nil {
		t.Fatalf("AuthFrame error: %v", err)
	}
	want := `{"op":"auth","args":["key",1700000000000,"abc"]}`
	if string(data) != want {
		t.Errorf("AuthFrame = %s, want %s", data, want)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
	}{
		{
			name:  "kline data",
			input: `{"topic":"kline.1.BTCUSDT","type":"snapshot","ts":1672324988882,"data":[]}`,
			kind:  KindData,
		},
		{
			name:  "subscribe ack",
			input: `{"success":true,"ret_msg":"","conn_id":"abc","req_id":"r1","op":"subscribe"}`,
			kind:  KindResponse,
		},
		{
			name:  "subscribe error",
			input: `{"success":false,"ret_msg":"error:handler not found,topic:foo","conn_id":"abc","req_id":"r2","op":"subscribe"}`,
			kind:  KindError,
		},
		{
			name:  "pong without success field",
			input: `{"op":"pong","args":["1672324988882"],"conn_id":"abc"}`,
			kind:  KindResponse,
		},
		{
			name:  "private order frame",
			input: `{"id":"5923240c6880ab-c59f-420b-9adb-3639adc9dd90","topic":"order","creationTime":1672364262474,"data":[]}`,
			kind:  KindData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if msg.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", msg.Kind, tt.kind)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Decode(not json) should fail")
	}
	if _, err := Decode([]byte(`{"foo":1}`)); !errors.Is(err, ErrUnrecognizedFrame) {
		t.Errorf("Decode({foo}) error = %v, want %v", err, ErrUnrecognizedFrame)
	}
}

func TestDecode_ResponseFields(t *testing.T) {
	msg, err := Decode([]byte(`{"success":true,"ret_msg":"subscribe","conn_id":"c1","req_id":"r9","op":"subscribe"}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if msg.Response.ReqID != "r9" || msg.Response.ConnID != "c1" || msg.Response.Op != OpSubscribe {
		t.Errorf("Response = %+v", msg.Response)
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestID([]byte(`{"req_id":"abc","op":"order.create"}`)); got != "abc" {
		t.Errorf("RequestID = %q, want abc", got)
	}
	if got := RequestID([]byte(`{"op":"x"}`)); got != "" {
		t.Errorf("RequestID = %q, want empty", got)
	}
}

func TestFrame_Klines(t *testing.T) {
	raw := `{"topic":"kline.5.BTCUSDT","data":[{"start":1672324800000,"end":1672325099999,"interval":"5",` +
		`"open":"16649.5","close":"16677","high":"16677","low":"16608","volume":"2.081","turnover":"34666.4005",` +
		`"confirm":false,"timestamp":1672324988882}],"ts":1672324988882,"type":"snapshot"}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	if msg.Frame.Channel() != "kline.5" || msg.Frame.Symbol() != "BTCUSDT" {
		t.Errorf("Channel/Symbol = %q/%q", msg.Frame.Channel(), msg.Frame.Symbol())
	}
	if !msg.Frame.IsSnapshot() {
		t.Error("IsSnapshot() = false, want true")
	}

	klines, err := msg.Frame.Klines()
	if err != nil {
		t.Fatalf("Klines error: %v", err)
	}
	if len(klines) != 1 {
		t.Fatalf("len(klines) = %d, want 1", len(klines))
	}
	if !klines[0].Open.Equal(decimal.RequireFromString("16649.5")) {
		t.Errorf("Open = %s, want 16649.5", klines[0].Open)
	}
	if !klines[0].Turnover.Equal(decimal.RequireFromString("34666.4005")) {
		t.Errorf("Turnover = %s, want 34666.4005", klines[0].Turnover)
	}

	if _, err := msg.Frame.Ticker(); err == nil {
		t.Error("Ticker() on a kline frame should fail")
	}
}

func TestFrame_TickerDelta(t *testing.T) {
	raw := `{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT","bid1Price":"17215.50"},"cs":1,"ts":1673853746003}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	tk, err := msg.Frame.Ticker()
	if err != nil {
		t.Fatalf("Ticker error: %v", err)
	}
	if !tk.Bid1Price.Valid || !tk.Bid1Price.Decimal.Equal(decimal.RequireFromString("17215.5")) {
		t.Errorf("Bid1Price = %+v", tk.Bid1Price)
	}
	if tk.LastPrice.Valid {
		t.Error("LastPrice should be invalid in a delta without it")
	}
}

func TestFrame_Trades(t *testing.T) {
	raw := `{"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1672304486868,"data":[{"T":1672304486865,` +
		`"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50","L":"PlusTick","i":"20f43950-d8dd-5b31-9112-a178eb6023af","BT":false}]}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	trades, err := msg.Frame.Trades()
	if err != nil {
		t.Fatalf("Trades error: %v", err)
	}
	if len(trades) != 1 || trades[0].Side != "Buy" || !strings.HasPrefix(trades[0].TradeID, "20f43950") {
		t.Errorf("trades = %+v", trades)
	}
	if !trades[0].Price.Equal(decimal.RequireFromString("16578.5")) {
		t.Errorf("Price = %s", trades[0].Price)
	}
}
