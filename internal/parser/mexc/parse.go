package mexc

import (
	"strconv"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type spotDeal struct {
	Time      int64         `json:"t"`
	Price     decode.Number `json:"p"`
	Quantity  decode.Number `json:"q"`
	Direction int           `json:"T"`
}

type swapDeal struct {
	Price     decode.Number `json:"p"`
	Volume    decode.Number `json:"v"`
	Direction int           `json:"T"`
	Time      int64         `json:"t"`
	Open      int           `json:"O"`
	Match     int           `json:"M"`
}

// ParseTrade decodes spot deals and swap push.deal frames. Neither carries a
// trade id, so the deal time stands in for it.
func (Parser) ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	if err := supported(marketType, string(model.MessageTypeTrade)); err != nil {
		return nil, err
	}
	if marketType == model.MarketTypeSpot {
		var data struct {
			Deals []spotDeal `json:"deals"`
		}
		symbol, err := spot(raw, &data)
		if err != nil {
			return nil, err
		}
		trades := make([]model.Trade, 0, len(data.Deals))
		for _, d := range data.Deals {
			t, err := trade(marketType, symbol, d.Price, d.Quantity, d.Direction, d.Time)
			if err != nil {
				return nil, err
			}
			trades = append(trades, t)
		}
		return trades, nil
	}

	var msg swapPush[swapDeal]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	if msg.Symbol == "" {
		return nil, model.ParseFailure(Exchange, "push.deal without symbol")
	}
	t, err := trade(marketType, msg.Symbol, msg.Data.Price, msg.Data.Volume, msg.Data.Direction, decode.First(msg.Data.Time, msg.Ts))
	if err != nil {
		return nil, err
	}
	return []model.Trade{t}, nil
}

func trade(marketType model.MarketType, symbol string, p, q decode.Number, direction int, ts int64) (model.Trade, error) {
	s, err := sizer(marketType, symbol)
	if err != nil {
		return model.Trade{}, err
	}
	price, err := decode.NonNegative(Exchange, "price", p)
	if err != nil {
		return model.Trade{}, err
	}
	qty, err := decode.NonNegative(Exchange, "quantity", q)
	if err != nil {
		return model.Trade{}, err
	}
	sd, err := side(direction)
	if err != nil {
		return model.Trade{}, err
	}
	if ts <= 0 {
		return model.Trade{}, model.ParseFailure(Exchange, "deal without time")
	}
	base, quote, contracts := s.Sizes(price, qty)
	return model.Trade{
		Exchange:         Exchange,
		MarketType:       marketType,
		Symbol:           symbol,
		Pair:             decode.Pair(Exchange, marketType, symbol),
		Side:             sd,
		Price:            price,
		QuantityBase:     base,
		QuantityQuote:    quote,
		QuantityContract: contracts,
		TradeID:          strconv.FormatInt(ts, 10),
		Timestamp:        ts,
	}, nil
}

type spotDepth struct {
	Asks []decode.PQ `json:"asks"`
	Bids []decode.PQ `json:"bids"`
}

// Levels are [price, volume, order count].
type swapDepth struct {
	Asks    [][]decode.Number `json:"asks"`
	Bids    [][]decode.Number `json:"bids"`
	Version *int64            `json:"version"`
}

// ParseL2 decodes spot depth pushes and swap push.depth frames. Spot depth
// has no timestamp, so ts is required there.
func (Parser) ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, string(model.MessageTypeL2Event)); err != nil {
		return nil, err
	}
	var (
		ob   model.OrderBook
		wire int64
	)
	if marketType == model.MarketTypeSpot {
		var data spotDepth
		symbol, err := spot(raw, &data)
		if err != nil {
			return nil, err
		}
		s := decode.BaseSizer(marketType)
		if ob.Asks, err = decode.ObjectLevels(Exchange, "ask", data.Asks, s); err != nil {
			return nil, err
		}
		if ob.Bids, err = decode.ObjectLevels(Exchange, "bid", data.Bids, s); err != nil {
			return nil, err
		}
		ob.Symbol = symbol
	} else {
		var msg swapPush[swapDepth]
		if err := decode.JSON(Exchange, raw, &msg); err != nil {
			return nil, err
		}
		if msg.Symbol == "" {
			return nil, model.ParseFailure(Exchange, "push.depth without symbol")
		}
		s, err := sizer(marketType, msg.Symbol)
		if err != nil {
			return nil, err
		}
		if ob.Asks, err = decode.Levels(Exchange, "ask", msg.Data.Asks, s); err != nil {
			return nil, err
		}
		if ob.Bids, err = decode.Levels(Exchange, "bid", msg.Data.Bids, s); err != nil {
			return nil, err
		}
		ob.Symbol = msg.Symbol
		ob.SeqID = msg.Data.Version
		wire = msg.Ts
	}

	var err error
	if ob.Timestamp, err = decode.Timestamp(Exchange, wire, ts); err != nil {
		return nil, err
	}
	ob.Exchange = Exchange
	ob.MarketType = marketType
	ob.Pair = decode.Pair(Exchange, marketType, ob.Symbol)
	ob.Asks, ob.Bids = decode.Book(ob.Asks, ob.Bids)
	return []model.OrderBook{ob}, nil
}
