package parser

import (
	"sort"
	"strings"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/binance"
	"cryptostream/internal/parser/bybit"
	"cryptostream/internal/parser/coinbasepro"
	"cryptostream/internal/parser/huobi"
	"cryptostream/internal/parser/mexc"
	"cryptostream/internal/parser/okx"
)

// Classifier is the capability every exchange provides: kind and routing
// symbol of a raw data message.
type Classifier interface {
	MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error)
	Symbol(marketType model.MarketType, raw []byte) (string, error)
}

// The parse capabilities are optional. An exchange lacking one reports
// ErrUnsupportedOperation for that kind.
type (
	TradeParser interface {
		ParseTrade(marketType model.MarketType, raw []byte) ([]model.Trade, error)
	}
	// L2Parser decodes incremental and full order book events. ts is used only
	// when the message carries no timestamp.
	L2Parser interface {
		ParseL2(marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error)
	}
	L2TopKParser interface {
		ParseL2TopK(marketType model.MarketType, raw []byte) ([]model.OrderBook, error)
	}
	// L2SnapshotParser decodes REST order book snapshots, which usually do
	// not name the symbol.
	L2SnapshotParser interface {
		ParseL2Snapshot(marketType model.MarketType, symbol string, raw []byte, ts *int64) ([]model.OrderBook, error)
	}
	BBOParser interface {
		ParseBBO(marketType model.MarketType, raw []byte, ts *int64) ([]model.BBO, error)
	}
	TickerParser interface {
		ParseTicker(marketType model.MarketType, raw []byte) ([]model.Ticker, error)
	}
	FundingRateParser interface {
		ParseFundingRate(marketType model.MarketType, raw []byte) ([]model.FundingRate, error)
	}
	// Companioner lists further kinds carried by messages of kind, such as a
	// funding rate embedded in a ticker.
	Companioner interface {
		Companions(marketType model.MarketType, kind model.MessageType) []model.MessageType
	}
)

var exchanges = map[string]Classifier{
	binance.Exchange:     binance.Parser{},
	bybit.Exchange:       bybit.Parser{},
	coinbasepro.Exchange: coinbasepro.Parser{},
	huobi.Exchange:       huobi.Parser{},
	mexc.Exchange:        mexc.Parser{},
	okx.Exchange:         okx.Parser{},
}

// Exchanges lists the exchanges with a parser, sorted.
func Exchanges() []string {
	names := make([]string, 0, len(exchanges))
	for name := range exchanges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(exchange string, marketType model.MarketType, op string) (Classifier, error) {
	c, ok := exchanges[strings.ToLower(exchange)]
	if !ok {
		return nil, model.Unsupported(exchange, marketType, op)
	}
	if _, err := model.ParseMarketType(string(marketType)); err != nil {
		return nil, model.Unsupported(exchange, marketType, op)
	}
	return c, nil
}

// Classify returns the kind and routing symbol of raw. Messages of no known
// kind classify as MessageTypeOther with an empty symbol and no error.
func Classify(exchange string, marketType model.MarketType, raw []byte) (model.MessageType, string, error) {
	c, err := lookup(exchange, marketType, "classify")
	if err != nil {
		return "", "", err
	}
	kind, err := c.MsgType(marketType, raw)
	if err != nil {
		return "", "", err
	}
	if kind == model.MessageTypeOther {
		return kind, "", nil
	}
	symbol, err := c.Symbol(marketType, raw)
	if err != nil {
		return "", "", err
	}
	return kind, symbol, nil
}

// GetMsgType returns the kind of raw.
func GetMsgType(exchange string, marketType model.MarketType, raw []byte) (model.MessageType, error) {
	c, err := lookup(exchange, marketType, "classify")
	if err != nil {
		return "", err
	}
	return c.MsgType(marketType, raw)
}

// ExtractSymbol returns the exchange-native symbol raw is about.
func ExtractSymbol(exchange string, marketType model.MarketType, raw []byte) (string, error) {
	c, err := lookup(exchange, marketType, "extract_symbol")
	if err != nil {
		return "", err
	}
	return c.Symbol(marketType, raw)
}

func ParseTrade(exchange string, marketType model.MarketType, raw []byte) ([]model.Trade, error) {
	c, err := lookup(exchange, marketType, string(model.MessageTypeTrade))
	if err != nil {
		return nil, err
	}
	p, ok := c.(TradeParser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, string(model.MessageTypeTrade))
	}
	return p.ParseTrade(marketType, raw)
}

func ParseL2(exchange string, marketType model.MarketType, raw []byte, ts *int64) ([]model.OrderBook, error) {
	c, err := lookup(exchange, marketType, string(model.MessageTypeL2Event))
	if err != nil {
		return nil, err
	}
	p, ok := c.(L2Parser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, string(model.MessageTypeL2Event))
	}
	return p.ParseL2(marketType, raw, ts)
}

func ParseL2TopK(exchange string, marketType model.MarketType, raw []byte) ([]model.OrderBook, error) {
	c, err := lookup(exchange, marketType, string(model.MessageTypeL2TopK))
	if err != nil {
		return nil, err
	}
	p, ok := c.(L2TopKParser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, string(model.MessageTypeL2TopK))
	}
	return p.ParseL2TopK(marketType, raw)
}

// ParseL2Snapshot decodes a REST order book snapshot of symbol.
func ParseL2Snapshot(exchange string, marketType model.MarketType, symbol string, raw []byte, ts *int64) ([]model.OrderBook, error) {
	c, err := lookup(exchange, marketType, "l2_snapshot")
	if err != nil {
		return nil, err
	}
	p, ok := c.(L2SnapshotParser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, "l2_snapshot")
	}
	return p.ParseL2Snapshot(marketType, symbol, raw, ts)
}

func ParseBBO(exchange string, marketType model.MarketType, raw []byte, ts *int64) ([]model.BBO, error) {
	c, err := lookup(exchange, marketType, string(model.MessageTypeBBO))
	if err != nil {
		return nil, err
	}
	p, ok := c.(BBOParser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, string(model.MessageTypeBBO))
	}
	return p.ParseBBO(marketType, raw, ts)
}

func ParseTicker(exchange string, marketType model.MarketType, raw []byte) ([]model.Ticker, error) {
	c, err := lookup(exchange, marketType, string(model.MessageTypeTicker))
	if err != nil {
		return nil, err
	}
	p, ok := c.(TickerParser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, string(model.MessageTypeTicker))
	}
	return p.ParseTicker(marketType, raw)
}

func ParseFundingRate(exchange string, marketType model.MarketType, raw []byte) ([]model.FundingRate, error) {
	c, err := lookup(exchange, marketType, string(model.MessageTypeFundingRate))
	if err != nil {
		return nil, err
	}
	p, ok := c.(FundingRateParser)
	if !ok {
		return nil, model.Unsupported(exchange, marketType, string(model.MessageTypeFundingRate))
	}
	return p.ParseFundingRate(marketType, raw)
}

// Parse decodes raw as kind and returns the canonical records. ts is the
// fallback timestamp for messages without one.
func Parse(exchange string, marketType model.MarketType, kind model.MessageType, raw []byte, ts *int64) ([]model.Record, error) {
	switch kind {
	case model.MessageTypeTrade:
		return records(ParseTrade(exchange, marketType, raw))
	case model.MessageTypeL2Event:
		return records(ParseL2(exchange, marketType, raw, ts))
	case model.MessageTypeL2TopK:
		return records(ParseL2TopK(exchange, marketType, raw))
	case model.MessageTypeBBO:
		return records(ParseBBO(exchange, marketType, raw, ts))
	case model.MessageTypeTicker:
		return records(ParseTicker(exchange, marketType, raw))
	case model.MessageTypeFundingRate:
		return records(ParseFundingRate(exchange, marketType, raw))
	default:
		return nil, model.Unsupported(exchange, marketType, string(kind))
	}
}

// ParseAll is Parse plus the records of every companion kind the exchange
// embeds in messages of kind.
func ParseAll(exchange string, marketType model.MarketType, kind model.MessageType, raw []byte, ts *int64) ([]model.Record, error) {
	out, err := Parse(exchange, marketType, kind, raw, ts)
	if err != nil {
		return nil, err
	}
	c, ok := exchanges[strings.ToLower(exchange)].(Companioner)
	if !ok {
		return out, nil
	}
	for _, extra := range c.Companions(marketType, kind) {
		recs, err := Parse(exchange, marketType, extra, raw, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func records[T model.Record](items []T, err error) ([]model.Record, error) {
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}
