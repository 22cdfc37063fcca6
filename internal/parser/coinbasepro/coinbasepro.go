package coinbasepro

import (
	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

const Exchange = "coinbasepro"

// Parser decodes websocket feed messages, which are flat objects keyed by
// "type" and "product_id". Only spot markets exist.
type Parser struct{}

func (Parser) MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error) {
	if err := supported(marketType, "classify"); err != nil {
		return "", err
	}
	var kind model.MessageType
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		t := v.GetStringBytes("type")
		if t == nil {
			return model.Malformed(Exchange, "no type field")
		}
		switch string(t) {
		case "match", "last_match":
			kind = model.MessageTypeTrade
		case "snapshot", "l2update":
			kind = model.MessageTypeL2Event
		case "ticker":
			kind = model.MessageTypeTicker
		default:
			kind = model.MessageTypeOther
		}
		return nil
	})
	return kind, err
}

func (Parser) Symbol(marketType model.MarketType, raw []byte) (string, error) {
	var symbol string
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		id := v.GetStringBytes("product_id")
		if len(id) == 0 {
			return model.Malformed(Exchange, "no product_id field")
		}
		symbol = string(id)
		return nil
	})
	return symbol, err
}

func supported(marketType model.MarketType, op string) error {
	if marketType != model.MarketTypeSpot {
		return model.Unsupported(Exchange, marketType, op)
	}
	return nil
}

// timestamp converts an optional RFC 3339 time field, falling back to ts.
func timestamp(field, value string, ts *int64) (int64, error) {
	var wire int64
	if value != "" {
		var err error
		if wire, err = decode.RFC3339Millis(Exchange, field, value); err != nil {
			return 0, err
		}
	}
	return decode.Timestamp(Exchange, wire, ts)
}
