package decode

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/symbols"
)

var parserPool fastjson.ParserPool

// Peek parses raw and hands the document to fn. Input that is not JSON is
// reported as a malformed message.
func Peek(exchange string, raw []byte, fn func(v *fastjson.Value) error) error {
	p := parserPool.Get()
	defer parserPool.Put(p)
	v, err := p.ParseBytes(raw)
	if err != nil {
		return model.Malformed(exchange, "not json: %v", err)
	}
	return fn(v)
}

// JSON unmarshals a payload, reporting failures as parse errors.
func JSON(exchange string, raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return model.ParseFailure(exchange, "%v", err)
	}
	return nil
}

// Pair returns the unified BASE/QUOTE of symbol, or "" when it cannot be
// derived from the symbol alone.
func Pair(exchange string, marketType model.MarketType, symbol string) string {
	pair, err := symbols.NormalizePair(exchange, marketType, symbol)
	if err != nil {
		return ""
	}
	return pair
}

// Side maps the exchange's taker side wording.
func Side(exchange, raw string) (model.Side, error) {
	switch strings.ToLower(raw) {
	case "buy", "b", "bid":
		return model.SideBuy, nil
	case "sell", "s", "ask":
		return model.SideSell, nil
	default:
		return "", model.ParseFailure(exchange, "unknown side %q", raw)
	}
}

// Channel splits a dotted channel name and returns element i.
func Channel(exchange, channel string, i int) (string, error) {
	parts := strings.Split(channel, ".")
	if i >= len(parts) || parts[i] == "" {
		return "", model.Malformed(exchange, "channel %q has no element %d", channel, i)
	}
	return parts[i], nil
}
