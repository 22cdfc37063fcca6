package coinbasepro

import (
	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

type match struct {
	Type      string        `json:"type"`
	TradeID   decode.Number `json:"trade_id"`
	Time      string        `json:"time"`
	ProductID string        `json:"product_id"`
	Size      decode.Number `json:"size"`
	Price     decode.Number `json:"price"`
	Side      string        `json:"side"`
}

// ParseTrade decodes match and last_match messages. side names the maker
// order, so the taker side is the opposite.
func (Parser) ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	if err := supported(marketType, string(model.MessageTypeTrade)); err != nil {
		return nil, err
	}
	var m match
	if err := decode.JSON(Exchange, raw, &m); err != nil {
		return nil, err
	}
	if m.ProductID == "" {
		return nil, model.ParseFailure(Exchange, "match without product_id")
	}
	price, err := decode.NonNegative(Exchange, "price", m.Price)
	if err != nil {
		return nil, err
	}
	size, err := decode.NonNegative(Exchange, "size", m.Size)
	if err != nil {
		return nil, err
	}
	maker, err := decode.Side(Exchange, m.Side)
	if err != nil {
		return nil, err
	}
	taker := model.SideBuy
	if maker == model.SideBuy {
		taker = model.SideSell
	}
	ts, err := decode.RFC3339Millis(Exchange, "time", m.Time)
	if err != nil {
		return nil, err
	}
	return []model.Trade{{
		Exchange:      Exchange,
		MarketType:    marketType,
		Symbol:        m.ProductID,
		Pair:          decode.Pair(Exchange, marketType, m.ProductID),
		Side:          taker,
		Price:         price,
		QuantityBase:  size,
		QuantityQuote: price * size,
		TradeID:       m.TradeID.String(),
		Timestamp:     ts,
	}}, nil
}

type level2 struct {
	Type      string            `json:"type"`
	ProductID string            `json:"product_id"`
	Time      string            `json:"time"`
	Bids      [][]decode.Number `json:"bids"`
	Asks      [][]decode.Number `json:"asks"`
	Changes   [][]decode.Number `json:"changes"`
}

// ParseL2 decodes snapshot and l2update messages. Snapshots carry no time,
// so ts is required for them.
func (Parser) ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, string(model.MessageTypeL2Event)); err != nil {
		return nil, err
	}
	var msg level2
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return nil, err
	}
	if msg.ProductID == "" {
		return nil, model.ParseFailure(Exchange, "%s without product_id", msg.Type)
	}
	s := decode.BaseSizer(marketType)
	ob := model.OrderBook{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     msg.ProductID,
		Pair:       decode.Pair(Exchange, marketType, msg.ProductID),
	}
	var err error
	switch msg.Type {
	case "snapshot":
		ob.Snapshot = true
		if ob.Asks, err = decode.Levels(Exchange, "ask", msg.Asks, s); err != nil {
			return nil, err
		}
		if ob.Bids, err = decode.Levels(Exchange, "bid", msg.Bids, s); err != nil {
			return nil, err
		}
	case "l2update":
		// changes are [side, price, size]
		for _, c := range msg.Changes {
			if len(c) < 3 {
				return nil, model.ParseFailure(Exchange, "change has %d elements", len(c))
			}
			side, err := decode.Side(Exchange, c[0].String())
			if err != nil {
				return nil, err
			}
			lvl, err := decode.Levels(Exchange, string(side), [][]decode.Number{c[1:]}, s)
			if err != nil {
				return nil, err
			}
			if side == model.SideBuy {
				ob.Bids = append(ob.Bids, lvl...)
			} else {
				ob.Asks = append(ob.Asks, lvl...)
			}
		}
	default:
		return nil, model.ParseFailure(Exchange, "unexpected level2 type %q", msg.Type)
	}
	ob.Asks, ob.Bids = decode.Book(ob.Asks, ob.Bids)
	if ob.Timestamp, err = timestamp("time", msg.Time, ts); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}

type bookResponse struct {
	Sequence int64             `json:"sequence"`
	Time     string            `json:"time"`
	Bids     [][]decode.Number `json:"bids"`
	Asks     [][]decode.Number `json:"asks"`
	Message  string            `json:"message"`
}

// ParseL2Snapshot decodes GET /products/<id>/book?level=2 responses. Older
// responses have no time field.
func (Parser) ParseL2Snapshot(marketType model.MarketType, symbol string, raw []byte, ts *int64) ([]model.OrderBook, error) {
	if err := supported(marketType, string(model.MessageTypeL2Event)); err != nil {
		return nil, err
	}
	var resp bookResponse
	if err := decode.JSON(Exchange, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Message != "" {
		return nil, model.ParseFailure(Exchange, "book snapshot: %s", resp.Message)
	}
	s := decode.BaseSizer(marketType)
	asks, err := decode.Levels(Exchange, "ask", resp.Asks, s)
	if err != nil {
		return nil, err
	}
	bids, err := decode.Levels(Exchange, "bid", resp.Bids, s)
	if err != nil {
		return nil, err
	}
	asks, bids = decode.Book(asks, bids)
	ob := model.OrderBook{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     symbol,
		Pair:       decode.Pair(Exchange, marketType, symbol),
		Snapshot:   true,
		Asks:       asks,
		Bids:       bids,
	}
	if resp.Sequence > 0 {
		ob.SeqID = &resp.Sequence
	}
	if ob.Timestamp, err = timestamp("time", resp.Time, ts); err != nil {
		return nil, err
	}
	return []model.OrderBook{ob}, nil
}

type ticker struct {
	ProductID string        `json:"product_id"`
	Price     decode.Number `json:"price"`
	Open24h   decode.Number `json:"open_24h"`
	High24h   decode.Number `json:"high_24h"`
	Low24h    decode.Number `json:"low_24h"`
	Volume24h decode.Number `json:"volume_24h"`
	Time      string        `json:"time"`
}

// ParseTicker decodes ticker messages. Quote volume is not published and is
// estimated from the last price.
func (Parser) ParseTicker(marketType model.MarketType, raw []byte) ([]model.Ticker, error) {
	if err := supported(marketType, string(model.MessageTypeTicker)); err != nil {
		return nil, err
	}
	var m ticker
	if err := decode.JSON(Exchange, raw, &m); err != nil {
		return nil, err
	}
	if m.ProductID == "" {
		return nil, model.ParseFailure(Exchange, "ticker without product_id")
	}
	t := model.Ticker{
		Exchange:   Exchange,
		MarketType: marketType,
		Symbol:     m.ProductID,
		Pair:       decode.Pair(Exchange, marketType, m.ProductID),
	}
	var err error
	for _, f := range []struct {
		name string
		n    decode.Number
		dst  *float64
	}{
		{"open_24h", m.Open24h, &t.Open},
		{"high_24h", m.High24h, &t.High},
		{"low_24h", m.Low24h, &t.Low},
		{"price", m.Price, &t.Close},
		{"volume_24h", m.Volume24h, &t.Volume},
	} {
		if *f.dst, err = decode.NonNegative(Exchange, f.name, f.n); err != nil {
			return nil, err
		}
	}
	t.QuoteVolume = t.Volume * t.Close
	if t.Timestamp, err = decode.RFC3339Millis(Exchange, "time", m.Time); err != nil {
		return nil, err
	}
	return []model.Ticker{t}, nil
}
