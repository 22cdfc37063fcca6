package huobi

import (
	"strings"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

const Exchange = "huobi"

// Parser decodes market data of every huobi market type. Market data frames
// carry the channel in "ch"; funding rates arrive as op=notify frames with a
// "topic".
type Parser struct{}

type envelope[T any] struct {
	Ch   string `json:"ch"`
	Ts   int64  `json:"ts"`
	Tick T      `json:"tick"`
}

// channel returns the "ch" of a market frame or the "topic" of a notify
// frame.
func channel(raw []byte) (string, error) {
	var ch string
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		if c := v.GetStringBytes("ch"); c != nil {
			ch = string(c)
			return nil
		}
		if string(v.GetStringBytes("op")) == "notify" {
			if t := v.GetStringBytes("topic"); t != nil {
				ch = string(t)
				return nil
			}
		}
		return model.Malformed(Exchange, "no ch or topic field")
	})
	return ch, err
}

func (Parser) MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error) {
	ch, err := channel(raw)
	if err != nil {
		return "", err
	}
	// "detail" must be tested after "trade.detail"; both end the same way.
	switch {
	case strings.HasSuffix(ch, "trade.detail"):
		return model.MessageTypeTrade, nil
	case strings.HasSuffix(ch, "depth.size_20.high_freq"),
		strings.HasSuffix(ch, "depth.size_150.high_freq"),
		strings.HasSuffix(ch, "mbp.20"):
		return model.MessageTypeL2Event, nil
	case strings.Contains(ch, ".depth.step"):
		return model.MessageTypeL2TopK, nil
	case strings.HasSuffix(ch, "bbo"):
		return model.MessageTypeBBO, nil
	case strings.HasSuffix(ch, "detail"):
		return model.MessageTypeTicker, nil
	case strings.Contains(ch, ".kline."):
		return model.MessageTypeCandlestick, nil
	case strings.HasSuffix(ch, ".funding_rate"):
		return model.MessageTypeFundingRate, nil
	default:
		return model.MessageTypeOther, nil
	}
}

// Symbol is the second component of the channel, e.g. BTC-USDT in
// market.BTC-USDT.trade.detail.
func (Parser) Symbol(marketType model.MarketType, raw []byte) (string, error) {
	ch, err := channel(raw)
	if err != nil {
		return "", err
	}
	return symbolOf(ch)
}

func symbolOf(ch string) (string, error) {
	return decode.Channel(Exchange, ch, 1)
}

// sizer picks the quantity conversion: spot quantities are base currency,
// derivative quantities are contracts.
func sizer(marketType model.MarketType, symbol string) (decode.Sizer, error) {
	if marketType == model.MarketTypeSpot {
		return decode.BaseSizer(marketType), nil
	}
	return decode.ContractSizer(Exchange, marketType, symbol)
}
