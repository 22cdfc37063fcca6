package huobi

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type bookTick struct {
	Asks       [][]decode.Number `json:"asks"`
	Bids       [][]decode.Number `json:"bids"`
	Ts         int64             `json:"ts"`
	Event      string            `json:"event"`
	Version    *int64            `json:"version"`
	SeqNum     *int64            `json:"seqNum"`
	PrevSeqNum *int64            `json:"prevSeqNum"`
}

// ParseL2 decodes spot mbp.20 increments and derivative high_freq events.
// Derivative events are snapshots when event is "snapshot".
func (Parser) ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeInverseFuture, model.MarketTypeInverseSwap,
		model.MarketTypeLinearFuture, model.MarketTypeLinearSwap, model.MarketTypeEuropeanOption:
		return parseBook(marketType, raw, ts, false)
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeL2Event))
	}
}

// ParseL2TopK decodes depth.step frames, which always carry the full top of
// the book.
func (Parser) ParseL2TopK(marketType model.MarketType, raw []byte) ([]model.OrderBook, error) {
	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeInverseFuture, model.MarketTypeInverseSwap,
		model.MarketTypeLinearFuture, model.MarketTypeLinearSwap, model.MarketTypeEuropeanOption:
		return parseBook(marketType, raw, nil, true)
	default:
		return nil, model.Unsupported(Exchange, marketType, string(model.MessageTypeL2TopK))
	}
}

func parseBook(marketType model.MarketType, raw []byte, fallback *int64, topK bool) ([]model.OrderBook, error) {
	var msg envelope[bookTick]
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
	asks, err := decode.Levels(Exchange, "ask", msg.Tick.Asks, s)
	if err != nil {
		return nil, err
	}
	bids, err := decode.Levels(Exchange, "bid", msg.Tick.Bids, s)
	if err != nil {
		return nil, err
	}
	asks, bids = decode.Book(asks, bids)

	ob := model.OrderBook{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
		Asks:       asks,
		Bids:       bids,
		TopK:       topK,
	}
	wire := msg.Tick.Ts
	switch {
	case topK:
		ob.Snapshot = true
		ob.SeqID = msg.Tick.Version
	case marketType == model.MarketTypeSpot:
		wire = msg.Ts
		ob.SeqID = msg.Tick.SeqNum
		ob.PrevSeqID = msg.Tick.PrevSeqNum
	default:
		ob.Snapshot = msg.Tick.Event == "snapshot"
		ob.SeqID = msg.Tick.Version
	}
	if wire == 0 {
		wire = msg.Ts
	}
	if ob.Timestamp, err = decode.Timestamp(Exchange, wire, fallback); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}
