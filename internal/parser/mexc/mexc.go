package mexc

import (
	"encoding/json"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

const Exchange = "mexc"

// Parser decodes two protocols. Spot pushes are arrays:
// ["push.symbol",{"symbol":"BTC_USDT","data":{"deals":[..]}}]. Swap pushes
// are objects: {"channel":"push.deal","symbol":"BTC_USDT","data":{..},"ts":..}.
type Parser struct{}

type spotPayload struct {
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
}

type swapPush[T any] struct {
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Ts      int64  `json:"ts"`
	Data    T      `json:"data"`
}

func (Parser) MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error) {
	if err := supported(marketType, "classify"); err != nil {
		return "", err
	}
	kind := model.MessageTypeOther
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		switch v.Type() {
		case fastjson.TypeArray:
			arr := v.GetArray()
			if len(arr) < 2 {
				return model.Malformed(Exchange, "push array has %d elements", len(arr))
			}
			if string(arr[0].GetStringBytes()) != "push.symbol" {
				return nil
			}
			// One push may hold deals and depth; deals take precedence.
			data := arr[1].Get("data")
			switch {
			case data == nil:
			case data.Exists("deals"):
				kind = model.MessageTypeTrade
			case data.Exists("asks"), data.Exists("bids"):
				kind = model.MessageTypeL2Event
			}
		case fastjson.TypeObject:
			ch := v.GetStringBytes("channel")
			if ch == nil {
				return model.Malformed(Exchange, "no channel field")
			}
			switch string(ch) {
			case "push.deal":
				kind = model.MessageTypeTrade
			case "push.depth":
				kind = model.MessageTypeL2Event
			}
		default:
			return model.Malformed(Exchange, "unexpected %s frame", v.Type())
		}
		return nil
	})
	return kind, err
}

// Symbol is payload.symbol on spot and the top-level symbol on swap.
func (Parser) Symbol(marketType model.MarketType, raw []byte) (string, error) {
	var symbol []byte
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		switch v.Type() {
		case fastjson.TypeArray:
			arr := v.GetArray()
			if len(arr) >= 2 {
				symbol = arr[1].GetStringBytes("symbol")
			}
		case fastjson.TypeObject:
			symbol = v.GetStringBytes("symbol")
		}
		if len(symbol) == 0 {
			return model.Malformed(Exchange, "no symbol field")
		}
		return nil
	})
	return string(symbol), err
}

// spot unpacks a spot push array into its symbol and decodes data into v.
func spot(raw []byte, v interface{}) (string, error) {
	var arr []json.RawMessage
	if err := decode.JSON(Exchange, raw, &arr); err != nil {
		return "", err
	}
	if len(arr) < 2 {
		return "", model.Malformed(Exchange, "push array has %d elements", len(arr))
	}
	var p spotPayload
	if err := decode.JSON(Exchange, arr[1], &p); err != nil {
		return "", err
	}
	if p.Symbol == "" || len(p.Data) == 0 {
		return "", model.ParseFailure(Exchange, "push without symbol or data")
	}
	if err := decode.JSON(Exchange, p.Data, v); err != nil {
		return "", err
	}
	return p.Symbol, nil
}

// sizer: spot quantities are base currency, swap volumes are contracts.
func sizer(marketType model.MarketType, symbol string) (decode.Sizer, error) {
	if marketType == model.MarketTypeSpot {
		return decode.BaseSizer(marketType), nil
	}
	return decode.ContractSizer(Exchange, marketType, symbol)
}

func supported(marketType model.MarketType, op string) error {
	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeLinearSwap:
		return nil
	default:
		return model.Unsupported(Exchange, marketType, op)
	}
}

// side maps the deal direction: 1 is a taker buy, 2 a taker sell.
func side(t int) (model.Side, error) {
	switch t {
	case 1:
		return model.SideBuy, nil
	case 2:
		return model.SideSell, nil
	default:
		return "", model.ParseFailure(Exchange, "unknown deal direction %d", t)
	}
}
