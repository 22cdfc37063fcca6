package bybit

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

// tickerData is shared by spot and derivative tickers. Derivative "delta"
// frames only carry the fields that changed.
type tickerData struct {
	Symbol          string        `json:"symbol"`
	LastPrice       decode.Number `json:"lastPrice"`
	PrevPrice24h    decode.Number `json:"prevPrice24h"`
	HighPrice24h    decode.Number `json:"highPrice24h"`
	LowPrice24h     decode.Number `json:"lowPrice24h"`
	Volume24h       decode.Number `json:"volume24h"`
	Turnover24h     decode.Number `json:"turnover24h"`
	FundingRate     decode.Number `json:"fundingRate"`
	NextFundingTime decode.Number `json:"nextFundingTime"`
}

func (d tickerData) complete() bool {
	for _, n := range []decode.Number{d.LastPrice, d.PrevPrice24h, d.HighPrice24h, d.LowPrice24h, d.Volume24h, d.Turnover24h} {
		if !n.IsSet() {
			return false
		}
	}
	return true
}

func parseTickers(raw []byte) (envelope[tickerData], string, error) {
	var msg envelope[tickerData]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return msg, "", err
	}
	symbol := msg.Data.Symbol
	if symbol == "" {
		var err error
		if symbol, err = symbolOf(msg.Topic); err != nil {
			return msg, "", err
		}
	}
	return msg, symbol, nil
}

// ParseTicker decodes tickers.<symbol> frames. Deltas missing any 24h field
// yield no record. On inverse contracts volume24h is USD contracts and
// turnover24h is base currency.
func (Parser) ParseTicker(marketType model.MarketType, raw []byte) ([]model.Ticker, error) {
	if err := supported(marketType, model.MessageTypeTicker); err != nil {
		return nil, err
	}
	msg, symbol, err := parseTickers(raw)
	if err != nil {
		return nil, err
	}
	if !msg.Data.complete() {
		return nil, nil
	}
	t := model.Ticker{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
	}
	var volume, turnover float64
	for _, f := range []struct {
		name string
		n    decode.Number
		dst  *float64
	}{
		{"prevPrice24h", msg.Data.PrevPrice24h, &t.Open},
		{"highPrice24h", msg.Data.HighPrice24h, &t.High},
		{"lowPrice24h", msg.Data.LowPrice24h, &t.Low},
		{"lastPrice", msg.Data.LastPrice, &t.Close},
		{"volume24h", msg.Data.Volume24h, &volume},
		{"turnover24h", msg.Data.Turnover24h, &turnover},
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
		_, quote, _ := s.Sizes(t.Close, volume)
		t.Volume, t.QuoteVolume = turnover, quote
	} else {
		t.Volume, t.QuoteVolume = volume, turnover
	}
	if t.Timestamp, err = decode.Timestamp(Exchange, msg.Ts, nil); err != nil {
		return nil, err
	}
	return []model.Ticker{t}, nil
}

// ParseFundingRate extracts the funding rate from swap tickers. Frames
// without fundingRate yield no record.
func (Parser) ParseFundingRate(marketType model.MarketType, raw []byte) ([]model.FundingRate, error) {
	switch marketType {
	case model.MarketTypeLinearSwap, model.MarketTypeInverseSwap:
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeFundingRate))
	}
	msg, symbol, err := parseTickers(raw)
	if err != nil {
		return nil, err
	}
	if !msg.Data.FundingRate.IsSet() {
		return nil, nil
	}
	rate, err := decode.Float(Exchange, "fundingRate", msg.Data.FundingRate)
	if err != nil {
		return nil, err
	}
	fundingTime, err := decode.Int(Exchange, "nextFundingTime", msg.Data.NextFundingTime)
	if err != nil {
		return nil, err
	}
	ts, err := decode.Timestamp(Exchange, msg.Ts, nil)
	if err != nil {
		return nil, err
	}
	return []model.FundingRate{{
		Exchange:    Exchange,
		MarketType:  marketType,
		Symbol:      symbol,
		Pair:        decode.Pair(Exchange, marketType, symbol),
		FundingRate: rate,
		FundingTime: fundingTime,
		Timestamp:   ts,
	}}, nil
}
