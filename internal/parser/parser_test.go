package parser

import (
	"errors"
	"testing"

	"cryptostream/internal/model"
)

const bybitTicker = `{"topic":"tickers.BTCUSDT","type":"snapshot","data":{"symbol":"BTCUSDT","lastPrice":"17216.00","prevPrice24h":"16926.50","highPrice24h":"17281.50","lowPrice24h":"16915.00","turnover24h":"1570383121.943499","volume24h":"91705.276","nextFundingTime":"1673280000000","fundingRate":"-0.000212"},"cs":24987956059,"ts":1673272861686}`

func TestExchanges(t *testing.T) {
	want := []string{"binance", "bybit", "coinbasepro", "huobi", "mexc", "okx"}
	got := Exchanges()
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestUnknownExchangeIsUnsupported(t *testing.T) {
	if _, _, err := Classify("kraken", model.MarketTypeSpot, []byte(`{}`)); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("Classify: %v", err)
	}
	if _, err := ParseTrade("kraken", model.MarketTypeSpot, []byte(`{}`)); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("ParseTrade: %v", err)
	}
	if _, err := ParseTrade("binance", model.MarketType("weird"), []byte(`{}`)); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("bad market type: %v", err)
	}
}

func TestClassify(t *testing.T) {
	kind, symbol, err := Classify("okx", model.MarketTypeSpot, []byte(`{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"}}`))
	if err != nil || kind != model.MessageTypeOther || symbol != "" {
		t.Errorf("event frame: %s %q %v", kind, symbol, err)
	}
	kind, symbol, err = Classify("BYBIT", model.MarketTypeLinearSwap, []byte(bybitTicker))
	if err != nil || kind != model.MessageTypeTicker || symbol != "BTCUSDT" {
		t.Errorf("ticker: %s %q %v", kind, symbol, err)
	}
	if _, _, err := Classify("binance", model.MarketTypeSpot, []byte(`not json`)); !errors.Is(err, model.ErrMalformedMessage) {
		t.Errorf("malformed: %v", err)
	}
}

func TestParseDispatch(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","E":1672515782136,"s":"BTCUSDT","t":12345,"p":"0.001","q":"100","T":1672515782136,"m":true,"M":true}}`)
	recs, err := Parse("binance", model.MarketTypeSpot, model.MessageTypeTrade, raw, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind() != model.MessageTypeTrade || recs[0].Key() != "binance.spot.BTCUSDT" {
		t.Fatalf("unexpected records %+v", recs)
	}
	if _, err := Parse("binance", model.MarketTypeSpot, model.MessageTypeCandlestick, raw, nil); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("candlestick: %v", err)
	}
	if _, err := Parse("mexc", model.MarketTypeSpot, model.MessageTypeTicker, raw, nil); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("mexc ticker: %v", err)
	}
	if _, err := ParseFundingRate("binance", model.MarketTypeSpot, raw); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("spot funding: %v", err)
	}
}

func TestParseAllAddsCompanions(t *testing.T) {
	recs, err := ParseAll("bybit", model.MarketTypeLinearSwap, model.MessageTypeTicker, []byte(bybitTicker), nil)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(recs) != 2 || recs[0].Kind() != model.MessageTypeTicker || recs[1].Kind() != model.MessageTypeFundingRate {
		t.Fatalf("unexpected records %+v", recs)
	}
	recs, err = ParseAll("bybit", model.MarketTypeSpot, model.MessageTypeTicker, []byte(bybitTicker), nil)
	if err != nil || len(recs) != 1 {
		t.Fatalf("spot ticker: %+v %v", recs, err)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	tests := []struct {
		exchange   string
		marketType model.MarketType
		raw        string
		kind       model.MessageType
		symbol     string
	}{
		{"binance", model.MarketTypeSpot, `{"stream":"btcusdt@trade","data":{"e":"trade","E":1616176861895,"s":"BTCUSDT","t":732952291,"p":"58300.01000000","q":"0.02000000","T":1616176861894,"m":true,"M":true}}`, model.MessageTypeTrade, "BTCUSDT"},
		{"bybit", model.MarketTypeLinearSwap, bybitTicker, model.MessageTypeTicker, "BTCUSDT"},
		{"coinbasepro", model.MarketTypeSpot, `{"type":"match","trade_id":10,"sequence":50,"time":"2014-11-07T08:19:27.028459Z","product_id":"BTC-USD","size":"5.23512","price":"400.23","side":"sell"}`, model.MessageTypeTrade, "BTC-USD"},
		{"huobi", model.MarketTypeSpot, `{"ch":"market.btcusdt.trade.detail","ts":1,"tick":{"ts":1,"data":[{"ts":1,"tradeId":1,"amount":1,"price":1,"direction":"buy"}]}}`, model.MessageTypeTrade, "btcusdt"},
		{"mexc", model.MarketTypeLinearSwap, `{"channel":"push.deal","data":{"M":1,"O":1,"T":1,"p":6866.5,"t":1587442049632,"v":10000},"symbol":"BTC_USDT","ts":1587442049632}`, model.MessageTypeTrade, "BTC_USDT"},
		{"okx", model.MarketTypeSpot, `{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[{"instId":"BTC-USDT","tradeId":"130639474","px":"42219.9","sz":"0.12060306","side":"buy","ts":"1630048897897"}]}`, model.MessageTypeTrade, "BTC-USDT"},
	}
	for _, tt := range tests {
		t.Run(tt.exchange, func(t *testing.T) {
			raw := []byte(tt.raw)
			kind1, symbol1, err1 := Classify(tt.exchange, tt.marketType, raw)
			kind2, symbol2, err2 := Classify(tt.exchange, tt.marketType, raw)
			if err1 != nil || err2 != nil {
				t.Fatalf("Classify: %v, %v", err1, err2)
			}
			if kind1 != kind2 || symbol1 != symbol2 {
				t.Errorf("first %s %q, second %s %q", kind1, symbol1, kind2, symbol2)
			}
			if kind1 != tt.kind || symbol1 != tt.symbol {
				t.Errorf("got %s %q, want %s %q", kind1, symbol1, tt.kind, tt.symbol)
			}
		})
	}
}
