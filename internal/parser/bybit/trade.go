package bybit

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type rawTrade struct {
	Time   int64         `json:"T"`
	Symbol string        `json:"s"`
	Side   string        `json:"S"`
	Volume decode.Number `json:"v"`
	Price  decode.Number `json:"p"`
	ID     string        `json:"i"`
}

func (Parser) ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	if err := supported(marketType, model.MessageTypeTrade); err != nil {
		return nil, err
	}
	var msg envelope[[]rawTrade]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	topicSymbol, err := symbolOf(msg.Topic)
	if err != nil {
		return nil, err
	}

	trades := make([]model.Trade, 0, len(msg.Data))
	for _, t := range msg.Data {
		symbol := t.Symbol
		if symbol == "" {
			symbol = topicSymbol
		}
		s, err := sizer(marketType, symbol)
		if err != nil {
			return nil, err
		}
		price, err := decode.NonNegative(Exchange, "p", t.Price)
		if err != nil {
			return nil, err
		}
		qty, err := decode.NonNegative(Exchange, "v", t.Volume)
		if err != nil {
			return nil, err
		}
		side, err := decode.Side(Exchange, t.Side)
		if err != nil {
			return nil, err
		}
		ts, err := decode.Timestamp(Exchange, decode.First(t.Time, msg.Ts), nil)
		if err != nil {
			return nil, err
		}
		base, quote, contracts := s.Sizes(price, qty)
		trades = append(trades, model.Trade{
			Exchange:         Exchange,
			MarketType:       marketType,
			Symbol:           symbol,
			Pair:             decode.Pair(Exchange, marketType, symbol),
			Side:             side,
			Price:            price,
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contracts,
			TradeID:          t.ID,
			Timestamp:        ts,
		})
	}
	return trades, nil
}
