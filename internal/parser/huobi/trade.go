package huobi

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type rawTrade struct {
	ID        decode.Number `json:"id"`
	TradeID   decode.Number `json:"tradeId"`
	Ts        int64         `json:"ts"`
	Price     decode.Number `json:"price"`
	Amount    decode.Number `json:"amount"`
	Quantity  decode.Number `json:"quantity"`
	Turnover  decode.Number `json:"trade_turnover"`
	Direction string        `json:"direction"`
}

type tradeTick struct {
	ID   int64      `json:"id"`
	Ts   int64      `json:"ts"`
	Data []rawTrade `json:"data"`
}

func (Parser) ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeInverseFuture, model.MarketTypeInverseSwap,
		model.MarketTypeLinearFuture, model.MarketTypeLinearSwap, model.MarketTypeEuropeanOption:
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeTrade))
	}

	var msg envelope[tradeTick]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	symbol, err := symbolOf(msg.Ch)
	if err != nil {
		return nil, err
	}
	s, err := sizer(marketType, symbol)
	if err != nil {
		return nil, err
	}
	pair := decode.Pair(Exchange, marketType, symbol)

	trades := make([]model.Trade, 0, len(msg.Tick.Data))
	for _, t := range msg.Tick.Data {
		price, err := decode.NonNegative(Exchange, "price", t.Price)
		if err != nil {
			return nil, err
		}
		amount, err := decode.NonNegative(Exchange, "amount", t.Amount)
		if err != nil {
			return nil, err
		}
		side, err := decode.Side(Exchange, t.Direction)
		if err != nil {
			return nil, err
		}
		ts, err := decode.Timestamp(Exchange, t.Ts, &msg.Tick.Ts)
		if err != nil {
			return nil, err
		}

		base, quote, contracts := s.Sizes(price, amount)
		// Linear contracts report the exact base quantity and turnover.
		if marketType.IsLinear() && t.Quantity.IsSet() {
			if base, err = decode.NonNegative(Exchange, "quantity", t.Quantity); err != nil {
				return nil, err
			}
			quote = base * price
			if t.Turnover.IsSet() {
				if quote, err = decode.NonNegative(Exchange, "trade_turnover", t.Turnover); err != nil {
					return nil, err
				}
			}
		}

		id := t.TradeID.String()
		if !t.TradeID.IsSet() {
			id = t.ID.String()
		}
		trades = append(trades, model.Trade{
			Exchange:         Exchange,
			MarketType:       marketType,
			Symbol:           symbol,
			Pair:             pair,
			Side:             side,
			Price:            price,
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contracts,
			TradeID:          id,
			Timestamp:        ts,
		})
	}
	return trades, nil
}
