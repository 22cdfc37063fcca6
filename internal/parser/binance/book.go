package binance

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type depthUpdate struct {
	Event         string            `json:"e"`
	EventTime     int64             `json:"E"`
	TransactTime  int64             `json:"T"`
	Symbol        string            `json:"s"`
	FirstUpdateID int64             `json:"U"`
	FinalUpdateID *int64            `json:"u"`
	PrevUpdateID  *int64            `json:"pu"`
	Bids          [][]decode.Number `json:"b"`
	Asks          [][]decode.Number `json:"a"`
}

// ParseL2 decodes depthUpdate diff events. Futures events carry the previous
// final update id in "pu"; spot events chain through U.
func (Parser) ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, model.MessageTypeL2Event); err != nil {
		return nil, err
	}
	var d depthUpdate
	symbol, err := unwrap(raw, &d)
	if err != nil {
		return nil, err
	}
	if d.Symbol != "" {
		symbol = d.Symbol
	}
	ob, err := book(marketType, symbol, d.Asks, d.Bids)
	if err != nil {
		return nil, err
	}
	ob.SeqID = d.FinalUpdateID
	ob.PrevSeqID = d.PrevUpdateID
	if ob.PrevSeqID == nil && d.FirstUpdateID > 0 {
		prev := d.FirstUpdateID - 1
		ob.PrevSeqID = &prev
	}
	if ob.Timestamp, err = decode.Timestamp(Exchange, decode.First(d.TransactTime, d.EventTime), ts); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}

type depthSnapshot struct {
	LastUpdateID int64             `json:"lastUpdateId"`
	EventTime    int64             `json:"E"`
	TransactTime int64             `json:"T"`
	Bids         [][]decode.Number `json:"bids"`
	Asks         [][]decode.Number `json:"asks"`
}

// ParseL2Snapshot decodes GET /api/v3/depth, /fapi/v1/depth and
// /dapi/v1/depth responses. Spot responses carry no timestamp.
func (Parser) ParseL2Snapshot(marketType model.MarketType, symbol string, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, model.MessageTypeL2Event); err != nil {
		return nil, err
	}
	var d depthSnapshot
	if err := decode.JSON(Exchange, raw, &d); err != nil {
		return nil, err
	}
	if d.LastUpdateID == 0 {
		return nil, model.ParseFailure(Exchange, "snapshot without lastUpdateId")
	}
	ob, err := book(marketType, symbol, d.Asks, d.Bids)
	if err != nil {
		return nil, err
	}
	ob.Snapshot = true
	ob.SeqID = &d.LastUpdateID
	if ob.Timestamp, err = decode.Timestamp(Exchange, decode.First(d.TransactTime, d.EventTime), ts); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}

func book(marketType model.MarketType, symbol string, rawAsks, rawBids [][]decode.Number) (model.OrderBook, error) {
	s, err := sizer(marketType, symbol)
	if err != nil {
		return model.OrderBook{}, err
	}
	asks, err := decode.Levels(Exchange, "ask", rawAsks, s)
	if err != nil {
		return model.OrderBook{}, err
	}
	bids, err := decode.Levels(Exchange, "bid", rawBids, s)
	if err != nil {
		return model.OrderBook{}, err
	}
	asks, bids = decode.Book(asks, bids)
	return model.OrderBook{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
		Asks:       asks,
		Bids:       bids,
	}, nil
}
