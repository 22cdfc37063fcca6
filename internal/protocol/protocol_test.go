package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

func symbolFor(exchange string, mt model.MarketType) string {
	switch exchange {
	case "binance", "bybit":
		return "BTCUSDT"
	case "huobi":
		if mt == model.MarketTypeSpot {
			return "btcusdt"
		}
		return "BTC-USDT"
	case "coinbasepro":
		return "BTC-USD"
	case "mexc":
		return "BTC_USDT"
	default:
		return "BTC-USDT"
	}
}

// TestRenderRoundTrip checks every supported exchange and market type renders
// JSON subscribe and unsubscribe commands carrying the right action tag.
func TestRenderRoundTrip(t *testing.T) {
	actions := map[string][2]string{
		"binance":     {"SUBSCRIBE", "UNSUBSCRIBE"},
		"bybit":       {`"op":"subscribe"`, `"op":"unsubscribe"`},
		"okx":         {`"op":"subscribe"`, `"op":"unsubscribe"`},
		"huobi":       {`"sub"`, `"unsub"`},
		"mexc":        {"sub.", "unsub."},
		"coinbasepro": {`"type":"subscribe"`, `"type":"unsubscribe"`},
	}
	for _, exchange := range Exchanges() {
		for _, mt := range model.AllMarketTypes {
			a, err := New(exchange, mt)
			if err != nil {
				if !errors.Is(err, model.ErrUnsupportedOperation) {
					t.Fatalf("%s %s: unexpected error %v", exchange, mt, err)
				}
				continue
			}
			ch, err := a.Channel(model.MessageTypeTrade)
			if err != nil {
				t.Fatalf("%s %s: trade channel: %v", exchange, mt, err)
			}
			pairs := []subscription.Pair{{Channel: ch, Symbol: symbolFor(exchange, mt)}}
			sub, err := a.RenderSubscribe(pairs)
			if err != nil || len(sub) == 0 {
				t.Fatalf("%s %s: RenderSubscribe=%v,%v", exchange, mt, sub, err)
			}
			unsub, err := a.RenderUnsubscribe(pairs)
			if err != nil || len(unsub) != len(sub) {
				t.Fatalf("%s %s: RenderUnsubscribe=%v,%v", exchange, mt, unsub, err)
			}
			for i := range sub {
				if !json.Valid([]byte(sub[i])) || !json.Valid([]byte(unsub[i])) {
					t.Fatalf("%s %s: invalid JSON %s / %s", exchange, mt, sub[i], unsub[i])
				}
				if !strings.Contains(sub[i], actions[exchange][0]) {
					t.Errorf("%s %s: subscribe %s missing %s", exchange, mt, sub[i], actions[exchange][0])
				}
				if !strings.Contains(unsub[i], actions[exchange][1]) {
					t.Errorf("%s %s: unsubscribe %s missing %s", exchange, mt, unsub[i], actions[exchange][1])
				}
			}
		}
	}
}

func TestNewUnknownExchange(t *testing.T) {
	if _, err := New("kraken", model.MarketTypeSpot); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if _, err := New("coinbasepro", model.MarketTypeLinearSwap); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestChannelUnsupported(t *testing.T) {
	a, err := New("huobi", model.MarketTypeSpot)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := a.Channel(model.MessageTypeFundingRate); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported funding channel on spot, got %v", err)
	}
	swap, _ := New("huobi", model.MarketTypeLinearSwap)
	if _, err := swap.Channel(model.MessageTypeFundingRate); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("funding rate must not be offered on the market data endpoint, got %v", err)
	}
	if _, err := swap.Channel(model.MessageTypeCandlestick); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("candlesticks have no parser, got %v", err)
	}
}

func TestSharedChannels(t *testing.T) {
	tests := []struct {
		exchange   string
		marketType model.MarketType
		kinds      [2]model.MessageType
	}{
		{"mexc", model.MarketTypeSpot, [2]model.MessageType{model.MessageTypeTrade, model.MessageTypeL2Event}},
		{"bybit", model.MarketTypeLinearSwap, [2]model.MessageType{model.MessageTypeTicker, model.MessageTypeFundingRate}},
		{"bybit", model.MarketTypeInverseSwap, [2]model.MessageType{model.MessageTypeTicker, model.MessageTypeFundingRate}},
	}
	for _, tt := range tests {
		a, err := New(tt.exchange, tt.marketType)
		if err != nil {
			t.Fatalf("New(%s, %s): %v", tt.exchange, tt.marketType, err)
		}
		first, err1 := a.Channel(tt.kinds[0])
		second, err2 := a.Channel(tt.kinds[1])
		if err1 != nil || err2 != nil {
			t.Fatalf("%s %s: %v, %v", tt.exchange, tt.marketType, err1, err2)
		}
		if first != second {
			t.Errorf("%s %s: %s on %q, %s on %q", tt.exchange, tt.marketType, tt.kinds[0], first, tt.kinds[1], second)
		}
	}

	// Distinct kinds on the same channel collapse into one pair, so one
	// unsubscribe covers both.
	a, _ := New("mexc", model.MarketTypeSpot)
	trade, _ := a.Channel(model.MessageTypeTrade)
	depth, _ := a.Channel(model.MessageTypeL2Event)
	pairs := append(subscription.Pairs(trade, []string{"BTC_USDT"}), subscription.Pairs(depth, []string{"BTC_USDT"})...)
	if got := subscription.GroupByChannel(pairs); len(got) != 1 || len(got[0].Symbols) != 1 {
		t.Errorf("expected one pair, got %+v", got)
	}
}

func TestHuobiNotificationEndpoint(t *testing.T) {
	cases := []struct {
		marketType model.MarketType
		url        string
	}{
		{model.MarketTypeInverseSwap, "wss://api.hbdm.com/swap-notification"},
		{model.MarketTypeLinearSwap, "wss://api.hbdm.com/linear-swap-notification"},
	}
	for _, c := range cases {
		a, err := New("huobi", c.marketType, WithNotification())
		if err != nil {
			t.Fatalf("%s: %v", c.marketType, err)
		}
		if a.URL() != c.url {
			t.Errorf("%s: url %s", c.marketType, a.URL())
		}
		if ch, err := a.Channel(model.MessageTypeFundingRate); err != nil || ch != "funding_rate" {
			t.Errorf("%s: funding channel %q %v", c.marketType, ch, err)
		}
		if _, err := a.Channel(model.MessageTypeTrade); !errors.Is(err, model.ErrUnsupportedOperation) {
			t.Errorf("%s: trades are not pushed on notification endpoints, got %v", c.marketType, err)
		}
		cmds, err := a.RenderSubscribe([]subscription.Pair{{Channel: "funding_rate", Symbol: "BTC-USDT"}})
		if err != nil || len(cmds) != 1 || !strings.Contains(cmds[0], `"topic":"public.BTC-USDT.funding_rate"`) {
			t.Errorf("%s: unexpected funding command %v %v", c.marketType, cmds, err)
		}
	}

	if _, err := New("huobi", model.MarketTypeSpot, WithNotification()); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("spot has no notification endpoint, got %v", err)
	}
	a, _ := New("huobi", model.MarketTypeLinearSwap, WithNotification(), WithURL("wss://example.test/notify"))
	if a.URL() != "wss://example.test/notify" {
		t.Errorf("URL override ignored: %s", a.URL())
	}
}

func TestCoinbaseProGroupsChannels(t *testing.T) {
	a, _ := New("coinbasepro", model.MarketTypeSpot)
	cmds, err := a.RenderSubscribe([]subscription.Pair{
		{Channel: "matches", Symbol: "BTC-USD"},
		{Channel: "matches", Symbol: "ETH-USD"},
		{Channel: "ticker", Symbol: "BTC-USD"},
	})
	if err != nil {
		t.Fatalf("RenderSubscribe failed: %v", err)
	}
	want := `{"type":"subscribe","channels":[{"name":"matches","product_ids":["BTC-USD","ETH-USD"]},{"name":"ticker","product_ids":["BTC-USD"]}]}`
	if len(cmds) != 1 || cmds[0] != want {
		t.Fatalf("unexpected commands %v", cmds)
	}
}

func TestBinanceChunksBySymbolLimit(t *testing.T) {
	a, _ := New("binance", model.MarketTypeLinearSwap, WithMaxSymbols(2))
	pairs := subscription.Pairs("aggTrade", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"})
	cmds, err := a.RenderSubscribe(pairs)
	if err != nil {
		t.Fatalf("RenderSubscribe failed: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %v", cmds)
	}
	var first binanceCommand
	if err := json.Unmarshal([]byte(cmds[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Method != "SUBSCRIBE" || len(first.Params) != 2 || first.Params[0] != "btcusdt@aggTrade" {
		t.Fatalf("unexpected command %+v", first)
	}
}

func TestHuobiOneTopicPerCommand(t *testing.T) {
	a, _ := New("huobi", model.MarketTypeLinearSwap)
	cmds, err := a.RenderSubscribe([]subscription.Pair{
		{Channel: "trade.detail", Symbol: "BTC-USDT"},
		{Channel: "depth.size_20.high_freq", Symbol: "BTC-USDT"},
	})
	if err != nil {
		t.Fatalf("RenderSubscribe failed: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %v", cmds)
	}
	if !strings.Contains(cmds[0], `"sub":"market.BTC-USDT.trade.detail"`) {
		t.Errorf("unexpected trade command %s", cmds[0])
	}
	if !strings.Contains(cmds[1], `"data_type":"incremental"`) {
		t.Errorf("high_freq command lacks data_type: %s", cmds[1])
	}
}

func TestRenderRejectsDelimiter(t *testing.T) {
	a, _ := New("okx", model.MarketTypeSpot)
	if _, err := a.RenderSubscribe([]subscription.Pair{{Channel: "trades", Symbol: "BTC$USDT"}}); err == nil {
		t.Fatalf("expected error for reserved delimiter")
	}
}

func TestClassifyControl(t *testing.T) {
	tests := []struct {
		exchange string
		mt       model.MarketType
		raw      string
		want     Control
	}{
		{"binance", model.MarketTypeSpot, `{"result":null,"id":1}`, Misc},
		{"binance", model.MarketTypeSpot, `{"stream":"btcusdt@trade","data":{"e":"trade"}}`, Normal},
		{"bybit", model.MarketTypeLinearSwap, `{"success":true,"ret_msg":"","conn_id":"x","op":"subscribe"}`, Misc},
		{"bybit", model.MarketTypeLinearSwap, `{"topic":"publicTrade.BTCUSDT","type":"snapshot","data":[]}`, Normal},
		{"okx", model.MarketTypeSpot, `{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"}}`, Misc},
		{"okx", model.MarketTypeSpot, `pong`, Misc},
		{"okx", model.MarketTypeSpot, `{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[]}`, Normal},
		{"huobi", model.MarketTypeSpot, `{"id":"id1","status":"ok","subbed":"market.btcusdt.trade.detail","ts":1}`, Misc},
		{"huobi", model.MarketTypeSpot, `{"ping":1492420473027}`, Misc},
		{"huobi", model.MarketTypeSpot, `{"ch":"market.btcusdt.trade.detail","ts":1,"tick":{}}`, Normal},
		{"huobi", model.MarketTypeInverseSwap, `{"op":"notify","topic":"public.BTC-USD.funding_rate","data":[]}`, Normal},
		{"mexc", model.MarketTypeSpot, `["push.symbol",{"symbol":"BTC_USDT","data":{}}]`, Normal},
		{"mexc", model.MarketTypeLinearSwap, `{"channel":"rs.sub.deal","data":"success","ts":1}`, Misc},
		{"mexc", model.MarketTypeLinearSwap, `{"channel":"push.deal","data":{},"symbol":"BTC_USDT"}`, Normal},
		{"coinbasepro", model.MarketTypeSpot, `{"type":"subscriptions","channels":[]}`, Misc},
		{"coinbasepro", model.MarketTypeSpot, `{"type":"heartbeat"}`, Misc},
		{"coinbasepro", model.MarketTypeSpot, `{"type":"error","message":"bad"}`, Misc},
		{"coinbasepro", model.MarketTypeSpot, `{"type":"match","product_id":"BTC-USD"}`, Normal},
	}
	for _, tt := range tests {
		a, err := New(tt.exchange, tt.mt)
		if err != nil {
			t.Fatalf("New(%s,%s) failed: %v", tt.exchange, tt.mt, err)
		}
		if got := a.ClassifyControl([]byte(tt.raw)); got != tt.want {
			t.Errorf("%s ClassifyControl(%s)=%s want %s", tt.exchange, tt.raw, got, tt.want)
		}
	}
}

func TestClassifyControlGarbage(t *testing.T) {
	for _, exchange := range Exchanges() {
		a, err := New(exchange, model.MarketTypeSpot)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", exchange, err)
		}
		for _, raw := range []string{"", "not json", `{"type":`, "\x00\x01"} {
			if got := a.ClassifyControl([]byte(raw)); got != Misc {
				t.Errorf("%s ClassifyControl(%q)=%s want misc", exchange, raw, got)
			}
		}
	}
}

func TestHuobiDecodeAndRespond(t *testing.T) {
	a, _ := New("huobi", model.MarketTypeSpot)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(`{"ping":1492420473027}`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	zw.Close()

	dec := a.(FrameDecoder)
	plain, err := dec.DecodeFrame(websocket.BinaryMessage, buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	reply, ok := a.(Responder).Respond(plain)
	if !ok || reply != `{"pong":1492420473027}` {
		t.Fatalf("unexpected reply %q %v", reply, ok)
	}
	if _, err := dec.DecodeFrame(websocket.BinaryMessage, []byte("garbage")); err == nil {
		t.Fatalf("expected error for invalid gzip data")
	}
	if out, err := dec.DecodeFrame(websocket.TextMessage, []byte("x")); err != nil || string(out) != "x" {
		t.Fatalf("text frames must pass through, got %q %v", out, err)
	}
}

func TestOkxRespond(t *testing.T) {
	a, _ := New("okx", model.MarketTypeSpot)
	if reply, ok := a.(Responder).Respond([]byte("ping")); !ok || reply != "pong" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if _, ok := a.(Responder).Respond([]byte(`{"arg":{}}`)); ok {
		t.Fatalf("data frame must not be answered")
	}
}

func TestWithURL(t *testing.T) {
	a, _ := New("huobi", model.MarketTypeLinearSwap, WithURL("wss://api.hbdm.com/linear-swap-notification"))
	if a.URL() != "wss://api.hbdm.com/linear-swap-notification" {
		t.Fatalf("URL override ignored: %s", a.URL())
	}
}
