package model

import (
	"errors"
	"testing"
)

func TestParseMarketType(t *testing.T) {
	for _, mt := range AllMarketTypes {
		got, err := ParseMarketType(string(mt))
		if err != nil || got != mt {
			t.Fatalf("ParseMarketType(%s)=%s,%v", mt, got, err)
		}
	}
	if got, err := ParseMarketType(" Linear_Swap "); err != nil || got != MarketTypeLinearSwap {
		t.Errorf("expected linear_swap, got %s %v", got, err)
	}
	if _, err := ParseMarketType("move"); err == nil {
		t.Errorf("expected error for unknown market type")
	}
}

func TestParseMessageType(t *testing.T) {
	if got, err := ParseMessageType("FUNDING_RATE"); err != nil || got != MessageTypeFundingRate {
		t.Fatalf("unexpected result %s %v", got, err)
	}
	if _, err := ParseMessageType("liquidation"); err == nil {
		t.Errorf("expected error for unknown message type")
	}
}

func TestMarketTypeMargin(t *testing.T) {
	tests := []struct {
		mt      MarketType
		linear  bool
		inverse bool
	}{
		{MarketTypeSpot, false, false},
		{MarketTypeInverseFuture, false, true},
		{MarketTypeInverseSwap, false, true},
		{MarketTypeLinearFuture, true, false},
		{MarketTypeLinearSwap, true, false},
		{MarketTypeEuropeanOption, true, false},
	}
	for _, tt := range tests {
		if tt.mt.IsLinear() != tt.linear || tt.mt.IsInverse() != tt.inverse {
			t.Errorf("%s: linear=%v inverse=%v", tt.mt, tt.mt.IsLinear(), tt.mt.IsInverse())
		}
	}
}

func TestRecordKeys(t *testing.T) {
	tr := Trade{Exchange: "huobi", MarketType: MarketTypeLinearSwap, Symbol: "BTC-USDT"}
	if tr.Key() != "huobi.linear_swap.BTC-USDT" {
		t.Errorf("unexpected key %s", tr.Key())
	}
	ob := OrderBook{TopK: true}
	if ob.Kind() != MessageTypeL2TopK {
		t.Errorf("expected l2_topk kind, got %s", ob.Kind())
	}
}

func TestErrorHelpers(t *testing.T) {
	err := Unsupported("huobi", MarketTypeSpot, "funding_rate")
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if err.Error() != "unsupported operation: huobi spot does not support funding_rate" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(Malformed("okx", "missing %s", "arg"), ErrMalformedMessage) {
		t.Errorf("expected ErrMalformedMessage")
	}
	if !errors.Is(ParseFailure("okx", "bad price"), ErrParse) {
		t.Errorf("expected ErrParse")
	}
	if !errors.Is(Transport("okx", errors.New("eof")), ErrTransport) {
		t.Errorf("expected ErrTransport")
	}
}

func TestMarketPair(t *testing.T) {
	m := Market{Base: "BTC", Quote: "USDT"}
	if m.Pair() != "BTC/USDT" {
		t.Errorf("unexpected pair %s", m.Pair())
	}
}
