package model

import "fmt"

// Record is implemented by every canonical record emitted by the parsers.
type Record interface {
	Kind() MessageType
	// Key identifies the stream the record belongs to and is used as the
	// partition key by sinks.
	Key() string
}

func key(exchange string, marketType MarketType, symbol string) string {
	return fmt.Sprintf("%s.%s.%s", exchange, marketType, symbol)
}

// Trade is a single fill.
type Trade struct {
	Exchange         string     `json:"exchange"`
	MarketType       MarketType `json:"market_type"`
	Symbol           string     `json:"symbol"`
	Pair             string     `json:"pair"`
	Side             Side       `json:"side"`
	Price            float64    `json:"price"`
	QuantityBase     float64    `json:"quantity_base"`
	QuantityQuote    float64    `json:"quantity_quote"`
	QuantityContract *float64   `json:"quantity_contract,omitempty"`
	TradeID          string     `json:"trade_id"`
	Timestamp        int64      `json:"timestamp"`
	ReceivedAt       int64      `json:"received_at,omitempty"`
}

func (t Trade) Kind() MessageType { return MessageTypeTrade }

func (t Trade) Key() string { return key(t.Exchange, t.MarketType, t.Symbol) }

// Order is one price level of an order book side. A zero quantity removes
// the level in an incremental update.
type Order struct {
	Price            float64  `json:"price"`
	QuantityBase     float64  `json:"quantity_base"`
	QuantityQuote    float64  `json:"quantity_quote"`
	QuantityContract *float64 `json:"quantity_contract,omitempty"`
}

// OrderBook is an order book snapshot or incremental update. Asks are sorted
// by ascending price and bids by descending price, with at most one level per
// price on each side.
type OrderBook struct {
	Exchange   string     `json:"exchange"`
	MarketType MarketType `json:"market_type"`
	Symbol     string     `json:"symbol"`
	Pair       string     `json:"pair"`
	Snapshot   bool       `json:"snapshot"`
	Asks       []Order    `json:"asks"`
	Bids       []Order    `json:"bids"`
	Timestamp  int64      `json:"timestamp"`
	SeqID      *int64     `json:"seq_id,omitempty"`
	PrevSeqID  *int64     `json:"prev_seq_id,omitempty"`
	TopK       bool       `json:"-"`
}

func (o OrderBook) Kind() MessageType {
	if o.TopK {
		return MessageTypeL2TopK
	}
	return MessageTypeL2Event
}

func (o OrderBook) Key() string { return key(o.Exchange, o.MarketType, o.Symbol) }

// BBO is the best bid and offer of a book.
type BBO struct {
	Exchange    string     `json:"exchange"`
	MarketType  MarketType `json:"market_type"`
	Symbol      string     `json:"symbol"`
	Pair        string     `json:"pair"`
	BidPrice    float64    `json:"bid_price"`
	BidQuantity float64    `json:"bid_quantity"`
	AskPrice    float64    `json:"ask_price"`
	AskQuantity float64    `json:"ask_quantity"`
	Timestamp   int64      `json:"timestamp"`
}

func (b BBO) Kind() MessageType { return MessageTypeBBO }

func (b BBO) Key() string { return key(b.Exchange, b.MarketType, b.Symbol) }

// Ticker is a rolling 24h statistics update.
type Ticker struct {
	Exchange    string     `json:"exchange"`
	MarketType  MarketType `json:"market_type"`
	Symbol      string     `json:"symbol"`
	Pair        string     `json:"pair"`
	Open        float64    `json:"open"`
	High        float64    `json:"high"`
	Low         float64    `json:"low"`
	Close       float64    `json:"close"`
	Volume      float64    `json:"volume"`
	QuoteVolume float64    `json:"quote_volume"`
	Timestamp   int64      `json:"timestamp"`
}

func (t Ticker) Kind() MessageType { return MessageTypeTicker }

func (t Ticker) Key() string { return key(t.Exchange, t.MarketType, t.Symbol) }
