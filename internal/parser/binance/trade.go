package binance

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

// rawTrade covers both trade and aggTrade events; the id field is "t" for
// trades and "a" for aggregated trades. encoding/json matches keys case
// insensitively, so event structs declare the upper-case twin of every key
// they read.
type rawTrade struct {
	Event      string        `json:"e"`
	EventTime  int64         `json:"E"`
	Symbol     string        `json:"s"`
	TradeID    decode.Number `json:"t"`
	AggID      decode.Number `json:"a"`
	Price      decode.Number `json:"p"`
	Quantity   decode.Number `json:"q"`
	TradeTime  int64         `json:"T"`
	BuyerMaker bool          `json:"m"`
	BestMatch  bool          `json:"M"`
}

func (Parser) ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	if err := supported(marketType, model.MessageTypeTrade); err != nil {
		return nil, err
	}
	var t rawTrade
	symbol, err := unwrap(raw, &t)
	if err != nil {
		return nil, err
	}
	if t.Symbol != "" {
		symbol = t.Symbol
	}
	s, err := sizer(marketType, symbol)
	if err != nil {
		return nil, err
	}
	price, err := decode.NonNegative(Exchange, "p", t.Price)
	if err != nil {
		return nil, err
	}
	qty, err := decode.NonNegative(Exchange, "q", t.Quantity)
	if err != nil {
		return nil, err
	}
	ts, err := decode.Timestamp(Exchange, decode.First(t.TradeTime, t.EventTime), nil)
	if err != nil {
		return nil, err
	}

	id := t.TradeID
	if t.Event == "aggTrade" {
		id = t.AggID
	}
	if !id.IsSet() {
		return nil, model.ParseFailure(Exchange, "%s event without trade id", t.Event)
	}
	// The taker sold into a resting bid when the buyer is the maker.
	side := model.SideBuy
	if t.BuyerMaker {
		side = model.SideSell
	}
	base, quote, contracts := s.Sizes(price, qty)
	return []model.Trade{{
		Exchange:         Exchange,
		MarketType:       marketType,
		Symbol:           symbol,
		Pair:             decode.Pair(Exchange, marketType, symbol),
		Side:             side,
		Price:            price,
		QuantityBase:     base,
		QuantityQuote:    quote,
		QuantityContract: contracts,
		TradeID:          id.String(),
		Timestamp:        ts,
	}}, nil
}
