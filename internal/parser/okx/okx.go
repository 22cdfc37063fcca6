package okx

import (
	"strings"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/parser/decode"
)

const Exchange = "okx"

// Parser decodes v5 public channel pushes:
// {"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[..]}.
type Parser struct{}

type arg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type push[T any] struct {
	Arg    arg    `json:"arg"`
	Action string `json:"action"`
	Data   []T    `json:"data"`
}

// envelope returns the channel and instrument of a push. Subscription
// events carry an arg too; they are reported with an empty channel.
func envelope(raw []byte) (arg, error) {
	var a arg
	err := decode.Peek(Exchange, raw, func(v *fastjson.Value) error {
		ch := v.GetStringBytes("arg", "channel")
		if ch == nil {
			return model.Malformed(Exchange, "no arg.channel field")
		}
		if v.Exists("event") {
			return nil
		}
		a.Channel = string(ch)
		a.InstID = string(v.GetStringBytes("arg", "instId"))
		return nil
	})
	return a, err
}

func (Parser) MsgType(marketType model.MarketType, raw []byte) (model.MessageType, error) {
	a, err := envelope(raw)
	if err != nil {
		return "", err
	}
	ch := a.Channel
	// books5 is a full top-5 book on every push; the other books channels
	// are snapshot plus increments.
	switch {
	case ch == "trades" || ch == "trades-all":
		return model.MessageTypeTrade, nil
	case ch == "books5":
		return model.MessageTypeL2TopK, nil
	case strings.HasPrefix(ch, "books"):
		return model.MessageTypeL2Event, nil
	case ch == "bbo-tbt":
		return model.MessageTypeBBO, nil
	case ch == "tickers":
		return model.MessageTypeTicker, nil
	case strings.HasPrefix(ch, "candle"):
		return model.MessageTypeCandlestick, nil
	case ch == "funding-rate":
		return model.MessageTypeFundingRate, nil
	default:
		return model.MessageTypeOther, nil
	}
}

// Symbol is arg.instId.
func (Parser) Symbol(marketType model.MarketType, raw []byte) (string, error) {
	a, err := envelope(raw)
	if err != nil {
		return "", err
	}
	if a.InstID == "" {
		return "", model.Malformed(Exchange, "no arg.instId field")
	}
	return a.InstID, nil
}

// sizer: spot sizes are base currency; swap, futures and option sizes are
// contracts.
func sizer(marketType model.MarketType, symbol string) (decode.Sizer, error) {
	switch marketType {
	case model.MarketTypeSpot:
		return decode.BaseSizer(marketType), nil
	case model.MarketTypeLinearFuture, model.MarketTypeLinearSwap, model.MarketTypeInverseFuture,
		model.MarketTypeInverseSwap, model.MarketTypeEuropeanOption:
		return decode.ContractSizer(Exchange, marketType, symbol)
	default:
		return decode.Sizer{}, model.Unsupported(Exchange, marketType, "sizing")
	}
}

func supported(marketType model.MarketType, op model.MessageType) error {
	for _, mt := range model.AllMarketTypes {
		if mt == marketType {
			return nil
		}
	}
	return model.Unsupported(Exchange, marketType, string(op))
}

func instrument(a arg, id string) string {
	if id != "" {
		return id
	}
	return a.InstID
}
