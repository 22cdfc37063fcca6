package bybit

import (
	"errors"
	"testing"

	"cryptostream/internal/model"
)

func TestMsgType(t *testing.T) {
	tests := []struct {
		topic string
		want  model.MessageType
	}{
		{"publicTrade.BTCUSDT", model.MessageTypeTrade},
		{"orderbook.50.BTCUSDT", model.MessageTypeL2Event},
		{"orderbook.1.BTCUSDT", model.MessageTypeBBO},
		{"tickers.BTCUSDT", model.MessageTypeTicker},
		{"kline.1.BTCUSDT", model.MessageTypeCandlestick},
		{"liquidation.BTCUSDT", model.MessageTypeOther},
	}
	for _, tt := range tests {
		raw := []byte(`{"topic":"` + tt.topic + `","type":"snapshot","ts":1,"data":{}}`)
		got, err := Parser{}.MsgType(model.MarketTypeLinearSwap, raw)
		if err != nil || got != tt.want {
			t.Errorf("%s: got %s %v, want %s", tt.topic, got, err, tt.want)
		}
		symbol, err := Parser{}.Symbol(model.MarketTypeLinearSwap, raw)
		if err != nil || symbol != "BTCUSDT" {
			t.Errorf("%s: symbol %q %v", tt.topic, symbol, err)
		}
	}
	if _, err := (Parser{}).MsgType(model.MarketTypeSpot, []byte(`{"op":"pong"}`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
	if _, err := (Parser{}).Symbol(model.MarketTypeSpot, []byte(`{"topic":"tickers."}`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
}

func TestParseLinearTrade(t *testing.T) {
	raw := []byte(`{"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1672304486868,"data":[{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50","L":"PlusTick","i":"20f43950-d8dd-5b31-9112-a178eb6023af","BT":false},{"T":1672304486866,"s":"BTCUSDT","S":"Sell","v":"0.5","p":"16578.00","L":"MinusTick","i":"20f43950-d8dd-5b31-9112-a178eb6023b0","BT":false}]}`)
	trades, err := Parser{}.ParseTrade(model.MarketTypeLinearSwap, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Side != model.SideBuy || tr.Price != 16578.5 || tr.QuantityBase != 0.001 || tr.Timestamp != 1672304486865 {
		t.Errorf("unexpected trade %+v", tr)
	}
	if tr.TradeID != "20f43950-d8dd-5b31-9112-a178eb6023af" || tr.Pair != "BTC/USDT" {
		t.Errorf("unexpected trade %+v", tr)
	}
	if trades[1].Side != model.SideSell || trades[1].QuantityQuote != 8289 {
		t.Errorf("unexpected second trade %+v", trades[1])
	}
}

func TestParseInverseTrade(t *testing.T) {
	raw := []byte(`{"topic":"publicTrade.BTCUSD","type":"snapshot","ts":1672304486868,"data":[{"T":1672304486865,"s":"BTCUSD","S":"Sell","v":"100","p":"20000","i":"1"}]}`)
	trades, err := Parser{}.ParseTrade(model.MarketTypeInverseSwap, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.QuantityQuote != 100 || tr.QuantityBase != 0.005 || tr.QuantityContract == nil || *tr.QuantityContract != 100 {
		t.Errorf("unexpected trade %+v", tr)
	}
}

func TestParseL2(t *testing.T) {
	raw := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"delta","ts":1687940967466,"data":{"s":"BTCUSDT","b":[["30247.20","30.028"],["30245.40","0"]],"a":[["30248.70","0"],["30249.30","0.892"]],"u":177400507,"seq":66544703342},"cts":1687940967464}`)
	books, err := Parser{}.ParseL2(model.MarketTypeLinearSwap, raw, nil)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	ob := books[0]
	if ob.Snapshot || ob.Timestamp != 1687940967466 || ob.SeqID == nil || *ob.SeqID != 177400507 {
		t.Errorf("unexpected header %+v", ob)
	}
	if len(ob.Asks) != 2 || ob.Asks[0].Price != 30248.7 || ob.Asks[0].QuantityBase != 0 {
		t.Errorf("asks %+v", ob.Asks)
	}
	if ob.Bids[0].Price != 30247.2 {
		t.Errorf("bids %+v", ob.Bids)
	}
}

func TestParseL2Snapshot(t *testing.T) {
	raw := []byte(`{"retCode":0,"retMsg":"OK","result":{"s":"BTCUSDT","a":[["65557.7","16.606555"]],"b":[["65485.47","47.081829"]],"ts":1716863719031,"u":230704,"seq":1432604333,"cts":1716863718905},"retExtInfo":{},"time":1716863719382}`)
	books, err := Parser{}.ParseL2Snapshot(model.MarketTypeSpot, "BTCUSDT", raw, nil)
	if err != nil {
		t.Fatalf("ParseL2Snapshot: %v", err)
	}
	if ob := books[0]; !ob.Snapshot || ob.Timestamp != 1716863719031 || ob.Asks[0].Price != 65557.7 {
		t.Errorf("unexpected snapshot %+v", ob)
	}
	failed := []byte(`{"retCode":10001,"retMsg":"params error","result":{}}`)
	if _, err := (Parser{}).ParseL2Snapshot(model.MarketTypeSpot, "BTCUSDT", failed, nil); !errors.Is(err, model.ErrParse) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestParseBBO(t *testing.T) {
	raw := []byte(`{"topic":"orderbook.1.BTCUSDT","type":"snapshot","ts":1687940967466,"data":{"s":"BTCUSDT","b":[["30247.20","30.028"]],"a":[["30248.70","1.5"]],"u":1}}`)
	bbos, err := Parser{}.ParseBBO(model.MarketTypeSpot, raw, nil)
	if err != nil {
		t.Fatalf("ParseBBO: %v", err)
	}
	if b := bbos[0]; b.BidPrice != 30247.2 || b.AskQuantity != 1.5 || b.Timestamp != 1687940967466 {
		t.Errorf("unexpected bbo %+v", b)
	}
}

const linearTicker = `{"topic":"tickers.BTCUSDT","type":"snapshot","data":{"symbol":"BTCUSDT","tickDirection":"PlusTick","price24hPcnt":"0.017103","lastPrice":"17216.00","prevPrice24h":"16926.50","highPrice24h":"17281.50","lowPrice24h":"16915.00","markPrice":"17217.33","turnover24h":"1570383121.943499","volume24h":"91705.276","nextFundingTime":"1673280000000","fundingRate":"-0.000212","bid1Price":"17215.50","ask1Price":"17216.00"},"cs":24987956059,"ts":1673272861686}`

func TestParseTicker(t *testing.T) {
	tickers, err := Parser{}.ParseTicker(model.MarketTypeLinearSwap, []byte(linearTicker))
	if err != nil {
		t.Fatalf("ParseTicker: %v", err)
	}
	tk := tickers[0]
	if tk.Open != 16926.5 || tk.Close != 17216 || tk.Volume != 91705.276 || tk.QuoteVolume != 1570383121.943499 {
		t.Errorf("unexpected ticker %+v", tk)
	}

	delta := []byte(`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT","markPrice":"17217.40"},"cs":1,"ts":1673272861700}`)
	tickers, err = Parser{}.ParseTicker(model.MarketTypeLinearSwap, delta)
	if err != nil || len(tickers) != 0 {
		t.Errorf("partial delta: %v %v", tickers, err)
	}
}

func TestParseFundingRate(t *testing.T) {
	rates, err := Parser{}.ParseFundingRate(model.MarketTypeLinearSwap, []byte(linearTicker))
	if err != nil {
		t.Fatalf("ParseFundingRate: %v", err)
	}
	if fr := rates[0]; fr.FundingRate != -0.000212 || fr.FundingTime != 1673280000000 || fr.Timestamp != 1673272861686 {
		t.Errorf("unexpected rate %+v", fr)
	}
	if _, err := (Parser{}).ParseFundingRate(model.MarketTypeSpot, []byte(linearTicker)); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("expected unsupported, got %v", err)
	}
}

func TestCompanions(t *testing.T) {
	if got := (Parser{}).Companions(model.MarketTypeInverseSwap, model.MessageTypeTicker); len(got) != 1 || got[0] != model.MessageTypeFundingRate {
		t.Errorf("unexpected companions %v", got)
	}
	if got := (Parser{}).Companions(model.MarketTypeSpot, model.MessageTypeTicker); got != nil {
		t.Errorf("spot tickers carry no funding rate, got %v", got)
	}
}
