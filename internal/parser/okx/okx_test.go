package okx

import (
	"errors"
	"testing"

	"cryptostream/internal/model"
)

func TestMsgType(t *testing.T) {
	tests := []struct {
		channel string
		want    model.MessageType
	}{
		{"trades", model.MessageTypeTrade},
		{"books", model.MessageTypeL2Event},
		{"books-l2-tbt", model.MessageTypeL2Event},
		{"books50-l2-tbt", model.MessageTypeL2Event},
		{"books5", model.MessageTypeL2TopK},
		{"bbo-tbt", model.MessageTypeBBO},
		{"tickers", model.MessageTypeTicker},
		{"candle1m", model.MessageTypeCandlestick},
		{"funding-rate", model.MessageTypeFundingRate},
		{"open-interest", model.MessageTypeOther},
	}
	for _, tt := range tests {
		raw := []byte(`{"arg":{"channel":"` + tt.channel + `","instId":"BTC-USDT-SWAP"},"data":[]}`)
		got, err := Parser{}.MsgType(model.MarketTypeLinearSwap, raw)
		if err != nil || got != tt.want {
			t.Errorf("%s: got %s %v, want %s", tt.channel, got, err, tt.want)
		}
	}

	ack := []byte(`{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"},"connId":"a4d3ae55"}`)
	if got, err := (Parser{}).MsgType(model.MarketTypeSpot, ack); err != nil || got != model.MessageTypeOther {
		t.Errorf("subscribe event: got %s %v", got, err)
	}
	if _, err := (Parser{}).MsgType(model.MarketTypeSpot, []byte(`{"data":[]}`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
	if _, err := (Parser{}).Symbol(model.MarketTypeSpot, []byte(`{"arg":{"channel":"trades"},"data":[]}`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("expected malformed, got %v", err)
	}
}

func TestParseSpotTrade(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","tradeId":"130639474","px":"42219.9","sz":"0.12060306","side":"buy","ts":"1630048897897"}]}`)
	trades, err := Parser{}.ParseTrade(model.MarketTypeSpot, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Price != 42219.9 || tr.QuantityBase != 0.12060306 || tr.Timestamp != 1630048897897 || tr.TradeID != "130639474" {
		t.Errorf("unexpected trade %+v", tr)
	}
	if tr.Pair != "BTC/USDT" || tr.QuantityContract != nil {
		t.Errorf("unexpected trade %+v", tr)
	}
}

func TestParseInverseSwapTrade(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"trades","instId":"BTC-USD-SWAP"},"data":[{"instId":"BTC-USD-SWAP","tradeId":"1","px":"50000","sz":"3","side":"sell","ts":"1630048897897"}]}`)
	trades, err := Parser{}.ParseTrade(model.MarketTypeInverseSwap, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.QuantityQuote != 300 || tr.QuantityBase != 0.006 || *tr.QuantityContract != 3 || tr.Pair != "BTC/USD" {
		t.Errorf("unexpected trade %+v", tr)
	}
}

func TestParseL2(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"snapshot","data":[{"asks":[["8476.98","415","0","13"],["8477","7","0","2"]],"bids":[["8476.97","256","0","12"]],"ts":"1597026383085","checksum":-855196043,"prevSeqId":-1,"seqId":123456}]}`)
	books, err := Parser{}.ParseL2(model.MarketTypeSpot, raw, nil)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	ob := books[0]
	if !ob.Snapshot || ob.Timestamp != 1597026383085 || *ob.SeqID != 123456 || ob.PrevSeqID != nil {
		t.Errorf("unexpected header %+v", ob)
	}
	if len(ob.Asks) != 2 || ob.Asks[0].Price != 8476.98 || ob.Asks[0].QuantityBase != 415 {
		t.Errorf("asks %+v", ob.Asks)
	}

	short := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"update","data":[{"asks":[["8476.98"]],"bids":[],"ts":"1597026383085"}]}`)
	if _, err := (Parser{}).ParseL2(model.MarketTypeSpot, short, nil); !errors.Is(err, model.ErrParse) {
		t.Errorf("expected parse error for short level, got %v", err)
	}
}

func TestParseL2Snapshot(t *testing.T) {
	raw := []byte(`{"code":"0","msg":"","data":[{"asks":[["41006.8","0.60038921","0","1"]],"bids":[["41006.3","0.30178218","0","2"]],"ts":"1629966436396"}]}`)
	books, err := Parser{}.ParseL2Snapshot(model.MarketTypeSpot, "BTC-USDT", raw, nil)
	if err != nil {
		t.Fatalf("ParseL2Snapshot: %v", err)
	}
	if ob := books[0]; !ob.Snapshot || ob.Symbol != "BTC-USDT" || ob.Timestamp != 1629966436396 {
		t.Errorf("unexpected snapshot %+v", ob)
	}
	if _, err := (Parser{}).ParseL2Snapshot(model.MarketTypeSpot, "BTC-USDT", []byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`), nil); !errors.Is(err, model.ErrParse) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestParseBBO(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"bbo-tbt","instId":"BTC-USDT-SWAP"},"data":[{"asks":[["30000.1","20","0","2"]],"bids":[["30000","10","0","1"]],"ts":"1670324386802","seqId":363996337}]}`)
	bbos, err := Parser{}.ParseBBO(model.MarketTypeLinearSwap, raw, nil)
	if err != nil {
		t.Fatalf("ParseBBO: %v", err)
	}
	if b := bbos[0]; b.BidPrice != 30000 || b.BidQuantity != 0.1 || b.AskQuantity != 0.2 || b.Timestamp != 1670324386802 {
		t.Errorf("unexpected bbo %+v", b)
	}
}

func TestParseTicker(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instType":"SPOT","instId":"BTC-USDT","last":"9999.99","lastSz":"0.1","askPx":"9999.99","askSz":"11","bidPx":"8888.88","bidSz":"5","open24h":"9000","high24h":"10000","low24h":"8888.88","volCcy24h":"2222","vol24h":"2222","sodUtc0":"2222","sodUtc8":"2222","ts":"1597026383085"}]}`)
	tickers, err := Parser{}.ParseTicker(model.MarketTypeSpot, raw)
	if err != nil {
		t.Fatalf("ParseTicker: %v", err)
	}
	if tk := tickers[0]; tk.Open != 9000 || tk.Close != 9999.99 || tk.Volume != 2222 || tk.Timestamp != 1597026383085 {
		t.Errorf("unexpected ticker %+v", tk)
	}
}

func TestParseFundingRate(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"funding-rate","instId":"BTC-USD-SWAP"},"data":[{"fundingRate":"0.0001875391284828","fundingTime":"1700726400000","instId":"BTC-USD-SWAP","instType":"SWAP","method":"current_period","nextFundingRate":"","nextFundingTime":"1700755200000","settState":"settled","ts":"1700724675402"}]}`)
	rates, err := Parser{}.ParseFundingRate(model.MarketTypeInverseSwap, raw)
	if err != nil {
		t.Fatalf("ParseFundingRate: %v", err)
	}
	fr := rates[0]
	if fr.FundingRate != 0.0001875391284828 || fr.FundingTime != 1700726400000 || fr.EstimatedRate != nil || fr.Pair != "BTC/USD" {
		t.Errorf("unexpected rate %+v", fr)
	}
	for _, mt := range []model.MarketType{model.MarketTypeSpot, model.MarketTypeInverseFuture, model.MarketTypeEuropeanOption} {
		if _, err := (Parser{}).ParseFundingRate(mt, raw); !errors.Is(err, model.ErrUnsupportedOperation) {
			t.Errorf("%s: expected unsupported, got %v", mt, err)
		}
	}
}
