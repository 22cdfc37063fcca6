package binance

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type bookTicker struct {
	Event        string        `json:"e"`
	Symbol       string        `json:"s"`
	BidPrice     decode.Number `json:"b"`
	BidQty       decode.Number `json:"B"`
	AskPrice     decode.Number `json:"a"`
	AskQty       decode.Number `json:"A"`
	EventTime    int64         `json:"E"`
	TransactTime int64         `json:"T"`
}

// ParseBBO decodes bookTicker events. Spot events carry no timestamp, so ts
// is required for them.
func (Parser) ParseBBO(marketType model.MarketType, raw []byte, ts *int64) ([]model.BBO, error) {
	if err := supported(marketType, model.MessageTypeBBO); err != nil {
		return nil, err
	}
	var b bookTicker
	symbol, err := unwrap(raw, &b)
	if err != nil {
		return nil, err
	}
	if b.Symbol != "" {
		symbol = b.Symbol
	}
	s, err := sizer(marketType, symbol)
	if err != nil {
		return nil, err
	}
	levels, err := decode.Levels(Exchange, "bbo", [][]decode.Number{{b.BidPrice, b.BidQty}, {b.AskPrice, b.AskQty}}, s)
	if err != nil {
		return nil, err
	}
	out := model.BBO{
		Exchange:    Exchange,
		MarketType:  marketType,
		Symbol:      symbol,
		Pair:        decode.Pair(Exchange, marketType, symbol),
		BidPrice:    levels[0].Price,
		BidQuantity: levels[0].QuantityBase,
		AskPrice:    levels[1].Price,
		AskQuantity: levels[1].QuantityBase,
	}
	if out.Timestamp, err = decode.Timestamp(Exchange, decode.First(b.TransactTime, b.EventTime), ts); err != nil {
		return nil, err
	}
	return []model.BBO{out}, nil
}

// 24hrTicker: on COIN-M "v" is contracts and "q" is base volume; elsewhere
// "v" is base and "q" is quote volume.
type ticker24h struct {
	Event     string        `json:"e"`
	EventTime int64         `json:"E"`
	Symbol    string        `json:"s"`
	Open      decode.Number `json:"o"`
	High      decode.Number `json:"h"`
	Low       decode.Number `json:"l"`
	Close     decode.Number `json:"c"`
	Volume    decode.Number `json:"v"`
	Quote     decode.Number `json:"q"`
	OpenTime  int64         `json:"O"`
	CloseTime int64         `json:"C"`
	LastID    int64         `json:"L"`
	LastQty   decode.Number `json:"Q"`
}

func (Parser) ParseTicker(marketType model.MarketType, raw []byte) ([]model.Ticker, error) {
	if err := supported(marketType, model.MessageTypeTicker); err != nil {
		return nil, err
	}
	var tk ticker24h
	symbol, err := unwrap(raw, &tk)
	if err != nil {
		return nil, err
	}
	if tk.Symbol != "" {
		symbol = tk.Symbol
	}
	t := model.Ticker{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
	}
	var v, q float64
	for _, f := range []struct {
		name string
		n    decode.Number
		dst  *float64
	}{
		{"o", tk.Open, &t.Open},
		{"h", tk.High, &t.High},
		{"l", tk.Low, &t.Low},
		{"c", tk.Close, &t.Close},
		{"v", tk.Volume, &v},
		{"q", tk.Quote, &q},
	} {
		if *f.dst, err = decode.NonNegative(Exchange, f.name, f.n); err != nil {
			return nil, err
		}
	}
	if marketType.IsInverse() {
		s, err := sizer(marketType, symbol)
		if err != nil {
			return nil, err
		}
		_, quote, _ := s.Sizes(t.Close, v)
		t.Volume, t.QuoteVolume = q, quote
	} else {
		t.Volume, t.QuoteVolume = v, q
	}
	if t.Timestamp, err = decode.Timestamp(Exchange, tk.EventTime, nil); err != nil {
		return nil, err
	}
	return []model.Ticker{t}, nil
}

type markPrice struct {
	Event       string        `json:"e"`
	EventTime   int64         `json:"E"`
	Symbol      string        `json:"s"`
	FundingRate decode.Number `json:"r"`
	FundingTime int64         `json:"T"`
}

// ParseFundingRate decodes markPriceUpdate events of perpetual swaps.
func (Parser) ParseFundingRate(marketType model.MarketType, raw []byte) ([]model.FundingRate, error) {
	switch marketType {
	case model.MarketTypeLinearSwap, model.MarketTypeInverseSwap:
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeFundingRate))
	}
	var m markPrice
	symbol, err := unwrap(raw, &m)
	if err != nil {
		return nil, err
	}
	if m.Symbol != "" {
		symbol = m.Symbol
	}
	rate, err := decode.Float(Exchange, "r", m.FundingRate)
	if err != nil {
		return nil, err
	}
	if m.FundingTime <= 0 {
		return nil, model.ParseFailure(Exchange, "markPriceUpdate without funding time")
	}
	ts, err := decode.Timestamp(Exchange, m.EventTime, nil)
	if err != nil {
		return nil, err
	}
	return []model.FundingRate{{
		Exchange:    Exchange,
		MarketType:  marketType,
		Symbol:      symbol,
		Pair:        decode.Pair(Exchange, marketType, symbol),
		FundingRate: rate,
		FundingTime: m.FundingTime,
		Timestamp:   ts,
	}}, nil
}
