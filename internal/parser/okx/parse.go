package okx

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type rawTrade struct {
	InstID  string        `json:"instId"`
	TradeID string        `json:"tradeId"`
	Px      decode.Number `json:"px"`
	Sz      decode.Number `json:"sz"`
	Side    string        `json:"side"`
	Ts      decode.Number `json:"ts"`
}

func (Parser) ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	if err := supported(marketType, model.MessageTypeTrade); err != nil {
		return nil, err
	}
	var msg push[rawTrade]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	trades := make([]model.Trade, 0, len(msg.Data))
	for _, t := range msg.Data {
		symbol := instrument(msg.Arg, t.InstID)
		s, err := sizer(marketType, symbol)
		if err != nil {
			return nil, err
		}
		price, err := decode.NonNegative(Exchange, "px", t.Px)
		if err != nil {
			return nil, err
		}
		size, err := decode.NonNegative(Exchange, "sz", t.Sz)
		if err != nil {
			return nil, err
		}
		side, err := decode.Side(Exchange, t.Side)
		if err != nil {
			return nil, err
		}
		ts, err := decode.Int(Exchange, "ts", t.Ts)
		if err != nil {
			return nil, err
		}
		base, quote, contracts := s.Sizes(price, size)
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
			TradeID:          t.TradeID,
			Timestamp:        ts,
		})
	}
	return trades, nil
}

// Levels are [price, size, deprecated, orders].
type rawBook struct {
	Asks      [][]decode.Number `json:"asks"`
	Bids      [][]decode.Number `json:"bids"`
	Ts        decode.Number     `json:"ts"`
	SeqID     *int64            `json:"seqId"`
	PrevSeqID *int64            `json:"prevSeqId"`
}

// ParseL2 decodes books, books-l2-tbt and books50-l2-tbt pushes. action is
// "snapshot" for the first push and "update" afterwards.
func (Parser) ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	return parseBooks(marketType, raw, ts, false)
}

// ParseL2TopK decodes books5 pushes.
func (Parser) ParseL2TopK(marketType model.MarketType, raw []byte) ([]model.OrderBook, error) {
	return parseBooks(marketType, raw, nil, true)
}

func parseBooks(marketType model.MarketType, raw []byte, fallback *int64, topK bool) ([]model.OrderBook, error) {
	kind := model.MessageTypeL2Event
	if topK {
		kind = model.MessageTypeL2TopK
	}
	if err := supported(marketType, kind); err != nil {
		return nil, err
	}
	var msg push[rawBook]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	if msg.Arg.InstID == "" {
		return nil, model.ParseFailure(Exchange, "books push without instId")
	}
	books := make([]model.OrderBook, 0, len(msg.Data))
	for _, d := range msg.Data {
		ob, err := book(marketType, msg.Arg.InstID, d, fallback)
		if err != nil {
			return nil, err
		}
		ob.TopK = topK
		ob.Snapshot = topK || msg.Action == "snapshot"
		books = append(books, ob)
	}
	return books, nil
}

func book(marketType model.MarketType, symbol string, d rawBook, fallback *int64) (model.OrderBook, error) {
	s, err := sizer(marketType, symbol)
	if err != nil {
		return model.OrderBook{}, err
	}
	asks, err := decode.Levels(Exchange, "ask", d.Asks, s)
	if err != nil {
		return model.OrderBook{}, err
	}
	bids, err := decode.Levels(Exchange, "bid", d.Bids, s)
	if err != nil {
		return model.OrderBook{}, err
	}
	asks, bids = decode.Book(asks, bids)
	ob := model.OrderBook{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
		Asks:       asks,
		Bids:       bids,
		SeqID:      d.SeqID,
	}
	// prevSeqId is -1 on snapshots.
	if d.PrevSeqID != nil && *d.PrevSeqID >= 0 {
		ob.PrevSeqID = d.PrevSeqID
	}
	var wire int64
	if d.Ts.IsSet() {
		if wire, err = decode.Int(Exchange, "ts", d.Ts); err != nil {
			return model.OrderBook{}, err
		}
	}
	if ob.Timestamp, err = decode.Timestamp(Exchange, wire, fallback); err != nil {
		return model.OrderBook{}, err
	}
	return ob, nil
}

type snapshotResponse struct {
	Code string    `json:"code"`
	Msg  string    `json:"msg"`
	Data []rawBook `json:"data"`
}

// ParseL2Snapshot decodes GET /api/v5/market/books responses.
func (Parser) ParseL2Snapshot(marketType model.MarketType, symbol string, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, model.MessageTypeL2Event); err != nil {
		return nil, err
	}
	var resp snapshotResponse
	if err := decode.JSON(Exchange, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, model.ParseFailure(Exchange, "books snapshot: %s %s", resp.Code, resp.Msg)
	}
	books := make([]model.OrderBook, 0, len(resp.Data))
	for _, d := range resp.Data {
		ob, err := book(marketType, symbol, d, ts)
		if err != nil {
			return nil, err
		}
		ob.Snapshot = true
		books = append(books, ob)
	}
	return books, nil
}

// ParseBBO decodes bbo-tbt pushes, one level per side.
func (Parser) ParseBBO(marketType model.MarketType, raw []byte, ts *int64) ([]model.BBO, error) {
	if err := supported(marketType, model.MessageTypeBBO); err != nil {
		return nil, err
	}
	var msg push[rawBook]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	out := make([]model.BBO, 0, len(msg.Data))
	for _, d := range msg.Data {
		ob, err := book(marketType, msg.Arg.InstID, d, ts)
		if err != nil {
			return nil, err
		}
		if len(ob.Asks) == 0 || len(ob.Bids) == 0 {
			return nil, model.ParseFailure(Exchange, "bbo-tbt push with an empty side")
		}
		out = append(out, model.BBO{
			Exchange:    Exchange,
			MarketType:  marketType,
			Symbol:      ob.Symbol,
			Pair:        ob.Pair,
			BidPrice:    ob.Bids[0].Price,
			BidQuantity: ob.Bids[0].QuantityBase,
			AskPrice:    ob.Asks[0].Price,
			AskQuantity: ob.Asks[0].QuantityBase,
			Timestamp:   ob.Timestamp,
		})
	}
	return out, nil
}

// On spot vol24h is base and volCcy24h quote volume. On derivatives vol24h
// is contracts and volCcy24h base volume.
type rawTicker struct {
	InstID    string        `json:"instId"`
	Last      decode.Number `json:"last"`
	Open24h   decode.Number `json:"open24h"`
	High24h   decode.Number `json:"high24h"`
	Low24h    decode.Number `json:"low24h"`
	Vol24h    decode.Number `json:"vol24h"`
	VolCcy24h decode.Number `json:"volCcy24h"`
	Ts        decode.Number `json:"ts"`
}

func (Parser) ParseTicker(marketType model.MarketType, raw []byte) ([]model.Ticker, error) {
	if err := supported(marketType, model.MessageTypeTicker); err != nil {
		return nil, err
	}
	var msg push[rawTicker]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	out := make([]model.Ticker, 0, len(msg.Data))
	for _, d := range msg.Data {
		symbol := instrument(msg.Arg, d.InstID)
		t := model.Ticker{
			Exchange:   Exchange,
			MarketType: marketType,
			Symbol:     symbol,
			Pair:       decode.Pair(Exchange, marketType, symbol),
		}
		var vol, volCcy float64
		var err error
		for _, f := range []struct {
			name string
			n    decode.Number
			dst  *float64
		}{
			{"open24h", d.Open24h, &t.Open},
			{"high24h", d.High24h, &t.High},
			{"low24h", d.Low24h, &t.Low},
			{"last", d.Last, &t.Close},
			{"vol24h", d.Vol24h, &vol},
			{"volCcy24h", d.VolCcy24h, &volCcy},
		} {
			if *f.dst, err = decode.NonNegative(Exchange, f.name, f.n); err != nil {
				return nil, err
			}
		}
		switch {
		case marketType == model.MarketTypeSpot:
			t.Volume, t.QuoteVolume = vol, volCcy
		case marketType.IsInverse():
			s, err := sizer(marketType, symbol)
			if err != nil {
				return nil, err
			}
			_, quote, _ := s.Sizes(t.Close, vol)
			t.Volume, t.QuoteVolume = volCcy, quote
		default:
			t.Volume, t.QuoteVolume = volCcy, volCcy*t.Close
		}
		if t.Timestamp, err = decode.Int(Exchange, "ts", d.Ts); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

type rawFunding struct {
	InstID          string        `json:"instId"`
	FundingRate     decode.Number `json:"fundingRate"`
	FundingTime     decode.Number `json:"fundingTime"`
	NextFundingRate decode.Number `json:"nextFundingRate"`
	Ts              decode.Number `json:"ts"`
}

// ParseFundingRate decodes funding-rate pushes of perpetual swaps.
func (Parser) ParseFundingRate(marketType model.MarketType, raw []byte) ([]model.FundingRate, error) {
	switch marketType {
	case model.MarketTypeLinearSwap, model.MarketTypeInverseSwap:
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeFundingRate))
	}
	var msg push[rawFunding]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	out := make([]model.FundingRate, 0, len(msg.Data))
	for _, d := range msg.Data {
		symbol := instrument(msg.Arg, d.InstID)
		rate, err := decode.Float(Exchange, "fundingRate", d.FundingRate)
		if err != nil {
			return nil, err
		}
		next, err := decode.OptionalFloat(Exchange, "nextFundingRate", d.NextFundingRate)
		if err != nil {
			return nil, err
		}
		fundingTime, err := decode.Int(Exchange, "fundingTime", d.FundingTime)
		if err != nil {
			return nil, err
		}
		ts, err := decode.Int(Exchange, "ts", d.Ts)
		if err != nil {
			return nil, err
		}
		out = append(out, model.FundingRate{
			Exchange:      Exchange,
			MarketType:    marketType,
			Symbol:        symbol,
			Pair:          decode.Pair(Exchange, marketType, symbol),
			FundingRate:   rate,
			FundingTime:   fundingTime,
			EstimatedRate: next,
			Timestamp:     ts,
		})
	}
	return out, nil
}
