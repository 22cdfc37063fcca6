package coinbasepro

import (
	"errors"
	"testing"

	"cryptostream/internal/model"
)

const matchMsg = `{"type":"match","trade_id":10,"sequence":50,"maker_order_id":"ac928c66-ca53-498f-9c13-a110027a60e8","taker_order_id":"132fb6ae-456b-4654-b4e0-d681ac05cea1","time":"2014-11-07T08:19:27.028459Z","product_id":"BTC-USD","size":"5.23512","price":"400.23","side":"sell"}`

func TestMsgType(t *testing.T) {
	tests := []struct {
		typ  string
		want model.MessageType
	}{
		{"match", model.MessageTypeTrade},
		{"last_match", model.MessageTypeTrade},
		{"snapshot", model.MessageTypeL2Event},
		{"l2update", model.MessageTypeL2Event},
		{"ticker", model.MessageTypeTicker},
		{"heartbeat", model.MessageTypeOther},
	}
	for _, tt := range tests {
		raw := []byte(`{"type":"` + tt.typ + `","product_id":"BTC-USD"}`)
		got, err := Parser{}.MsgType(model.MarketTypeSpot, raw)
		if err != nil || got != tt.want {
			t.Errorf("%s: got %s %v, want %s", tt.typ, got, err, tt.want)
		}
	}
	if _, err := (Parser{}).MsgType(model.MarketTypeSpot, []byte(`{"product_id":"BTC-USD"}`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
	if _, err := (Parser{}).MsgType(model.MarketTypeLinearSwap, []byte(matchMsg)); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("expected unsupported, got %v", err)
	}
	if s, err := (Parser{}).Symbol(model.MarketTypeSpot, []byte(matchMsg)); err != nil || s != "BTC-USD" {
		t.Errorf("symbol %q %v", s, err)
	}
}

func TestParseTradeUsesTakerSide(t *testing.T) {
	trades, err := Parser{}.ParseTrade(model.MarketTypeSpot, []byte(matchMsg))
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Side != model.SideBuy {
		t.Errorf("maker sold, taker side should be buy, got %s", tr.Side)
	}
	if tr.Price != 400.23 || tr.QuantityBase != 5.23512 || tr.TradeID != "10" || tr.Timestamp != 1415348367028 {
		t.Errorf("unexpected trade %+v", tr)
	}
	if tr.Pair != "BTC/USD" {
		t.Errorf("pair %q", tr.Pair)
	}
}

func TestParseL2(t *testing.T) {
	snapshot := []byte(`{"type":"snapshot","product_id":"BTC-USD","bids":[["10101.10","0.45054140"]],"asks":[["10102.55","0.57753524"]]}`)
	if _, err := (Parser{}).ParseL2(model.MarketTypeSpot, snapshot, nil); !errors.Is(err, model.ErrParse) {
		t.Fatalf("snapshot without ts: %v", err)
	}
	ts := int64(1565815347265)
	books, err := Parser{}.ParseL2(model.MarketTypeSpot, snapshot, &ts)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	if ob := books[0]; !ob.Snapshot || ob.Timestamp != ts || ob.Bids[0].Price != 10101.1 {
		t.Errorf("unexpected snapshot %+v", ob)
	}

	update := []byte(`{"type":"l2update","product_id":"BTC-USD","time":"2019-08-14T20:42:27.265Z","changes":[["buy","10101.80000000","0.162567"],["sell","10102.00","0"]]}`)
	books, err = Parser{}.ParseL2(model.MarketTypeSpot, update, nil)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	ob := books[0]
	if ob.Snapshot || ob.Timestamp != 1565815347265 {
		t.Errorf("unexpected update %+v", ob)
	}
	if len(ob.Bids) != 1 || ob.Bids[0].QuantityBase != 0.162567 || len(ob.Asks) != 1 || ob.Asks[0].QuantityBase != 0 {
		t.Errorf("unexpected levels %+v %+v", ob.Bids, ob.Asks)
	}
}

func TestParseL2Snapshot(t *testing.T) {
	raw := []byte(`{"bids":[["295.96","4.39088265",2]],"asks":[["295.97","25.23542881",12]],"sequence":3}`)
	ts := int64(1700000000000)
	books, err := Parser{}.ParseL2Snapshot(model.MarketTypeSpot, "BTC-USD", raw, &ts)
	if err != nil {
		t.Fatalf("ParseL2Snapshot: %v", err)
	}
	if ob := books[0]; ob.SeqID == nil || *ob.SeqID != 3 || ob.Timestamp != ts || ob.Symbol != "BTC-USD" {
		t.Errorf("unexpected snapshot %+v", ob)
	}
	if _, err := (Parser{}).ParseL2Snapshot(model.MarketTypeSpot, "NOPE-USD", []byte(`{"message":"NotFound"}`), &ts); !errors.Is(err, model.ErrParse) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestParseTicker(t *testing.T) {
	raw := []byte(`{"type":"ticker","sequence":37475248783,"product_id":"ETH-USD","price":"1285.22","open_24h":"1310.79","volume_24h":"245532.79269678","low_24h":"1280.52","high_24h":"1313.8","volume_30d":"9788783.60117027","best_bid":"1285.04","best_ask":"1285.27","side":"buy","time":"2022-10-19T23:28:22.061769Z","trade_id":370843401,"last_size":"11.4396987"}`)
	tickers, err := Parser{}.ParseTicker(model.MarketTypeSpot, raw)
	if err != nil {
		t.Fatalf("ParseTicker: %v", err)
	}
	if tk := tickers[0]; tk.Open != 1310.79 || tk.Close != 1285.22 || tk.Volume != 245532.79269678 || tk.Timestamp != 1666222102061 {
		t.Errorf("unexpected ticker %+v", tk)
	}
}
