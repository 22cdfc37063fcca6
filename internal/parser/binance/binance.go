package binance

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

const Exchange = "binance"

// Parser decodes combined stream payloads: {"stream":"btcusdt@trade","data":{..}}.
type Parser struct{}

type combined struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func stream(raw []byte) (string, error) {
	var name string
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		s := v.GetStringBytes("stream")
		if s == nil || !v.Exists("data") {
			return model.Malformed(Exchange, "no stream or data field")
		}
		name = string(s)
		return nil
	})
	return name, err
}

func (Parser) MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error) {
	s, err := stream(raw)
	if err != nil {
		return "", err
	}
	i := strings.IndexByte(s, '@')
	if i < 0 {
		return model.MessageTypeOther, nil
	}
	channel := s[i+1:]
	// depth5/10/20 are partial books; the rest are diff streams.
	switch {
	case channel == "trade" || channel == "aggTrade":
		return model.MessageTypeTrade, nil
	case strings.HasPrefix(channel, "depth5"), strings.HasPrefix(channel, "depth10"),
		strings.HasPrefix(channel, "depth20"):
		return model.MessageTypeL2TopK, nil
	case strings.HasPrefix(channel, "depth"):
		return model.MessageTypeL2Event, nil
	case channel == "bookTicker":
		return model.MessageTypeBBO, nil
	case channel == "ticker":
		return model.MessageTypeTicker, nil
	case strings.HasPrefix(channel, "kline_"):
		return model.MessageTypeCandlestick, nil
	case strings.HasPrefix(channel, "markPrice"):
		return model.MessageTypeFundingRate, nil
	default:
		return model.MessageTypeOther, nil
	}
}

// Symbol is the upper-cased stream prefix, e.g. BTCUSD_PERP for
// btcusd_perp@aggTrade.
func (Parser) Symbol(marketType model.MarketType, raw []byte) (string, error) {
	s, err := stream(raw)
	if err != nil {
		return "", err
	}
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		return "", model.Malformed(Exchange, "stream %q has no symbol", s)
	}
	return strings.ToUpper(s[:i]), nil
}

// unwrap decodes the data member of a combined stream frame into v and
// returns the stream symbol.
func unwrap(raw []byte, v interface{}) (string, error) {
	var msg combined
	if err := decode.JSON(Exchange, raw, &msg); err != nil {
		return "", err
	}
	i := strings.IndexByte(msg.Stream, '@')
	if i <= 0 || len(msg.Data) == 0 {
		return "", model.Malformed(Exchange, "stream %q has no symbol or data", msg.Stream)
	}
	if err := decode.JSON(Exchange, msg.Data, v); err != nil {
		return "", err
	}
	return strings.ToUpper(msg.Stream[:i]), nil
}

// sizer: spot and USD-M quantities are base currency, COIN-M quantities
// are contracts.
func sizer(marketType model.MarketType, symbol string) (decode.Sizer, error) {
	switch marketType {
	case model.MarketTypeInverseFuture, model.MarketTypeInverseSwap:
		return decode.ContractSizer(Exchange, marketType, symbol)
	default:
		return decode.BaseSizer(marketType), nil
	}
}

func supported(marketType model.MarketType, op model.MessageType) error {
	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeLinearFuture, model.MarketTypeLinearSwap,
		model.MarketTypeInverseFuture, model.MarketTypeInverseSwap:
		return nil
	default:
		return model.Unsupported(Exchange, marketType, string(op))
	}
}
