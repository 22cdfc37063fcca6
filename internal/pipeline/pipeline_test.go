package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cryptostream/internal/channel"
	"cryptostream/internal/model"
)

const binanceTrade = `{"stream":"btcusdt@trade","data":{"e":"trade","E":1672515782136,"s":"BTCUSDT","t":12345,"p":"0.001","q":"100","T":1672515782136,"m":true,"M":true}}`

func rawFrame(data string, at time.Time) model.RawMessage {
	return model.RawMessage{
		Exchange:     "binance",
		MarketType:   model.MarketTypeSpot,
		ConnectionID: "conn-1",
		ReceivedAt:   at,
		Data:         []byte(data),
	}
}

func TestNormalizerEmitsRecords(t *testing.T) {
	ch := channel.NewChannels(8, 8)
	p := New(ch, WithWorkers(1))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second start should fail")
	}

	at := time.UnixMilli(1672515783000)
	ch.Raw <- rawFrame(`{"stream":"btcusdt","data":{}}`, at)
	ch.Raw <- rawFrame(`not json`, at)
	ch.Raw <- rawFrame(binanceTrade, at)

	select {
	case rec := <-ch.Norm:
		trade, ok := rec.(model.Trade)
		if !ok {
			t.Fatalf("unexpected record %T", rec)
		}
		if trade.Symbol != "BTCUSDT" || trade.Pair != "BTC/USDT" {
			t.Errorf("unexpected trade %+v", trade)
		}
		if trade.ReceivedAt != 1672515783000 || trade.Timestamp != 1672515782136 {
			t.Errorf("unexpected times %d %d", trade.ReceivedAt, trade.Timestamp)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for record")
	}

	cancel()
	p.Stop()
	s := p.Stats()
	if s.Frames != 3 || s.Records != 1 || s.Skipped != 1 || s.Errors != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestNormalizerFiltersSymbols(t *testing.T) {
	ch := channel.NewChannels(8, 8)
	p := New(ch, WithSymbols([]string{"ethusdt"}))
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch.Raw <- rawFrame(binanceTrade, time.Now())
	ch.Close()
	p.Stop()
	cancel()

	if s := p.Stats(); s.Filtered != 1 || s.Records != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestNormalizerSkipsCandlesticks(t *testing.T) {
	ch := channel.NewChannels(8, 8)
	p := New(ch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch.Raw <- rawFrame(`{"stream":"btcusdt@kline_1m","data":{"e":"kline","E":1672515782136,"s":"BTCUSDT","k":{}}}`, time.Now())
	ch.Close()
	p.Stop()

	if s := p.Stats(); s.Skipped != 1 || s.Errors != 0 || s.Records != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{model.Malformed("okx", "no arg"), "malformed"},
		{model.Unsupported("mexc", model.MarketTypeSpot, "ticker"), "unsupported"},
		{model.ParseFailure("okx", "bad price"), "parse"},
		{fmt.Errorf("wrapped: %w", model.ErrMalformedMessage), "malformed"},
		{errors.New("other"), "parse"},
	}
	for _, c := range cases {
		if got := Reason(c.err); got != c.want {
			t.Errorf("Reason(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}
