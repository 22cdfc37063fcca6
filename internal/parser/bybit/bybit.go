package bybit

import (
	"strings"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

const Exchange = "bybit"

// Parser decodes v5 public stream frames: {"topic":"publicTrade.BTCUSDT",
// "type":"snapshot","ts":..,"data":..}.
type Parser struct{}

type envelope[T any] struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Ts    int64  `json:"ts"`
	Data  T      `json:"data"`
}

func topic(raw []byte) (string, error) {
	var t string
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		b := v.GetStringBytes("topic")
		if b == nil {
			return model.Malformed(Exchange, "no topic field")
		}
		t = string(b)
		return nil
	})
	return t, err
}

func (Parser) MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error) {
	t, err := topic(raw)
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(t, "publicTrade."):
		return model.MessageTypeTrade, nil
	case strings.HasPrefix(t, "orderbook.1."):
		return model.MessageTypeBBO, nil
	case strings.HasPrefix(t, "orderbook."):
		return model.MessageTypeL2Event, nil
	case strings.HasPrefix(t, "tickers."):
		return model.MessageTypeTicker, nil
	case strings.HasPrefix(t, "kline."):
		return model.MessageTypeCandlestick, nil
	default:
		return model.MessageTypeOther, nil
	}
}

// Symbol is the last topic component: orderbook.50.BTCUSDT gives BTCUSDT.
func (Parser) Symbol(marketType model.MarketType, raw []byte) (string, error) {
	t, err := topic(raw)
	if err != nil {
		return "", err
	}
	return symbolOf(t)
}

func symbolOf(topic string) (string, error) {
	i := strings.LastIndexByte(topic, '.')
	if i < 0 || i == len(topic)-1 {
		return "", model.Malformed(Exchange, "topic %q has no symbol", topic)
	}
	return topic[i+1:], nil
}

// Companions reports that swap tickers also carry the funding rate.
func (Parser) Companions(marketType model.MarketType, kind model.MessageType) []model.MessageType {
	if kind == model.MessageTypeTicker &&
		(marketType == model.MarketTypeLinearSwap || marketType == model.MarketTypeInverseSwap) {
		return []model.MessageType{model.MessageTypeFundingRate}
	}
	return nil
}

// sizer: inverse quantities are USD contracts, everything else is base
// currency.
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
