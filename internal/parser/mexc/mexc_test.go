package mexc

import (
	"errors"
	"testing"

	"cryptostream/internal/model"
)

const (
	spotDeals    = `["push.symbol",{"symbol":"BTC_USDT","data":{"deals":[{"t":1616373554541,"p":"57005.81","q":"0.009151","T":2},{"t":1616373554542,"p":"57006","q":"0.5","T":1}]}}]`
	spotDepthMsg = `["push.symbol",{"symbol":"BTC_USDT","data":{"asks":[{"p":"57005.82","q":"0.1","a":"5700.58"}],"bids":[{"p":"57005.81","q":"0","a":"0"},{"p":"57005.00","q":"2","a":"114010"}]}}]`
	swapDealMsg  = `{"channel":"push.deal","data":{"M":1,"O":1,"T":1,"p":6866.5,"t":1587442049632,"v":10000},"symbol":"BTC_USDT","ts":1587442049632}`
	swapDepthMsg = `{"channel":"push.depth","data":{"asks":[[6859.5,3251,1]],"bids":[[6859,20000,2]],"version":96801927},"symbol":"BTC_USDT","ts":1587442022003}`
)

func TestMsgType(t *testing.T) {
	tests := []struct {
		marketType model.MarketType
		raw        string
		want       model.MessageType
	}{
		{model.MarketTypeSpot, spotDeals, model.MessageTypeTrade},
		{model.MarketTypeSpot, spotDepthMsg, model.MessageTypeL2Event},
		{model.MarketTypeSpot, `["rs.sub.symbol",{"symbol":"BTC_USDT"}]`, model.MessageTypeOther},
		{model.MarketTypeLinearSwap, swapDealMsg, model.MessageTypeTrade},
		{model.MarketTypeLinearSwap, swapDepthMsg, model.MessageTypeL2Event},
		{model.MarketTypeLinearSwap, `{"channel":"push.ticker","data":{},"symbol":"BTC_USDT","ts":1}`, model.MessageTypeOther},
	}
	for _, tt := range tests {
		got, err := Parser{}.MsgType(tt.marketType, []byte(tt.raw))
		if err != nil || got != tt.want {
			t.Errorf("%s: got %s %v, want %s", tt.raw, got, err, tt.want)
		}
	}
	if _, err := (Parser{}).MsgType(model.MarketTypeSpot, []byte(`["pong"]`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
	if _, err := (Parser{}).MsgType(model.MarketTypeInverseSwap, []byte(swapDealMsg)); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("expected unsupported, got %v", err)
	}
}

func TestSymbol(t *testing.T) {
	for _, raw := range []string{spotDeals, swapDepthMsg} {
		got, err := Parser{}.Symbol(model.MarketTypeSpot, []byte(raw))
		if err != nil || got != "BTC_USDT" {
			t.Errorf("%s: got %q %v", raw, got, err)
		}
	}
	if _, err := (Parser{}).Symbol(model.MarketTypeSpot, []byte(`{"channel":"pong","data":1}`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
}

func TestParseSpotTrade(t *testing.T) {
	trades, err := Parser{}.ParseTrade(model.MarketTypeSpot, []byte(spotDeals))
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Side != model.SideSell || tr.Price != 57005.81 || tr.QuantityBase != 0.009151 || tr.Timestamp != 1616373554541 {
		t.Errorf("unexpected trade %+v", tr)
	}
	if tr.Pair != "BTC/USDT" || tr.QuantityContract != nil {
		t.Errorf("unexpected trade %+v", tr)
	}
	if trades[1].Side != model.SideBuy || trades[1].QuantityQuote != 28503 {
		t.Errorf("unexpected second trade %+v", trades[1])
	}
}

func TestParseSwapTrade(t *testing.T) {
	trades, err := Parser{}.ParseTrade(model.MarketTypeLinearSwap, []byte(swapDealMsg))
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Side != model.SideBuy || tr.Price != 6866.5 || tr.QuantityBase != 1 || tr.QuantityQuote != 6866.5 {
		t.Errorf("unexpected trade %+v", tr)
	}
	if tr.QuantityContract == nil || *tr.QuantityContract != 10000 || tr.Timestamp != 1587442049632 {
		t.Errorf("unexpected trade %+v", tr)
	}

	bad := []byte(`{"channel":"push.deal","data":{"T":3,"p":1,"t":1,"v":1},"symbol":"BTC_USDT","ts":1}`)
	if _, err := (Parser{}).ParseTrade(model.MarketTypeLinearSwap, bad); !errors.Is(err, model.ErrParse) {
		t.Errorf("expected parse error for direction 3, got %v", err)
	}
}

func TestParseSpotL2NeedsTimestamp(t *testing.T) {
	if _, err := (Parser{}).ParseL2(model.MarketTypeSpot, []byte(spotDepthMsg), nil); !errors.Is(err, model.ErrParse) {
		t.Fatalf("expected parse error without ts, got %v", err)
	}
	ts := int64(1616373554600)
	books, err := Parser{}.ParseL2(model.MarketTypeSpot, []byte(spotDepthMsg), &ts)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	ob := books[0]
	if ob.Timestamp != ts || ob.Snapshot || ob.Symbol != "BTC_USDT" {
		t.Errorf("unexpected header %+v", ob)
	}
	if len(ob.Bids) != 2 || ob.Bids[0].Price != 57005.81 || ob.Bids[0].QuantityBase != 0 {
		t.Errorf("bids %+v", ob.Bids)
	}
}

func TestParseSwapL2(t *testing.T) {
	ts := int64(1)
	books, err := Parser{}.ParseL2(model.MarketTypeLinearSwap, []byte(swapDepthMsg), &ts)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	ob := books[0]
	if ob.Timestamp != 1587442022003 || ob.SeqID == nil || *ob.SeqID != 96801927 {
		t.Errorf("unexpected header %+v", ob)
	}
	if ob.Bids[0].QuantityBase != 2 || *ob.Bids[0].QuantityContract != 20000 {
		t.Errorf("bids %+v", ob.Bids)
	}
}
