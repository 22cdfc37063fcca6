package bybit

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type bookData struct {
	Symbol   string            `json:"s"`
	Bids     [][]decode.Number `json:"b"`
	Asks     [][]decode.Number `json:"a"`
	UpdateID int64             `json:"u"`
	Seq      *int64            `json:"seq"`
	Ts       int64             `json:"ts"`
}

// ParseL2 decodes orderbook.<depth>.<symbol> frames. type is "snapshot" for
// the first frame after subscribing and "delta" afterwards.
func (Parser) ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, model.MessageTypeL2Event); err != nil {
		return nil, err
	}
	var msg envelope[bookData]
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	symbol := msg.Data.Symbol
	if symbol == "" {
		var err error
		if symbol, err = symbolOf(msg.Topic); err != nil {
			return nil, err
		}
	}
	ob, err := book(marketType, symbol, msg.Data)
	if err != nil {
		return nil, err
	}
	ob.Snapshot = msg.Type == "snapshot"
	if ob.Timestamp, err = decode.Timestamp(Exchange, msg.Ts, ts); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}

type snapshotResponse struct {
	RetCode int      `json:"retCode"`
	RetMsg  string   `json:"retMsg"`
	Result  bookData `json:"result"`
	Time    int64    `json:"time"`
}

// ParseL2Snapshot decodes GET /v5/market/orderbook responses.
func (Parser) ParseL2Snapshot(marketType model.MarketType, symbol string, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, model.MessageTypeL2Event); err != nil {
		return nil, err
	}
	var resp snapshotResponse
	if err := decode.JSON(Exchange, raw, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, model.ParseFailure(Exchange, "orderbook snapshot: %d %s", resp.RetCode, resp.RetMsg)
	}
	if resp.Result.Symbol != "" {
		symbol = resp.Result.Symbol
	}
	ob, err := book(marketType, symbol, resp.Result)
	if err != nil {
		return nil, err
	}
	ob.Snapshot = true
	if ob.Timestamp, err = decode.Timestamp(Exchange, decode.First(resp.Result.Ts, resp.Time), ts); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}

func book(marketType model.MarketType, symbol string, d bookData) (model.OrderBook, error) {
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
	}
	if d.UpdateID > 0 {
		u := d.UpdateID
		ob.SeqID = &u
	}
	return ob, nil
}

// ParseBBO decodes orderbook.1 frames, which always carry one level per
// side. A delta that leaves a side unchanged omits it and yields no record.
func (Parser) ParseBBO(marketType model.MarketType, raw []byte, ts *int64) ([]model.BBO, error) {
	if err := supported(marketType, model.MessageTypeBBO); err != nil {
		return nil, err
	}
	books, err := Parser{}.ParseL2(marketType, raw, ts)
	if err != nil {
		return nil, err
	}
	ob := books[0]
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return nil, nil
	}
	return []model.BBO{{
		Exchange:    Exchange,
		MarketType:  marketType,
		Symbol:      ob.Symbol,
		Pair:        ob.Pair,
		BidPrice:    ob.Bids[0].Price,
		BidQuantity: ob.Bids[0].QuantityBase,
		AskPrice:    ob.Asks[0].Price,
		AskQuantity: ob.Asks[0].QuantityBase,
		Timestamp:   ob.Timestamp,
	}}, nil
}
