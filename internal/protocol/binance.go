package protocol

import (
	"strings"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

const (
	binanceSpotURL    = "wss://stream.binance.com:9443/stream"
	binanceLinearURL  = "wss://fstream.binance.com/stream"
	binanceInverseURL = "wss://dstream.binance.com/stream"
)

// binance subscribes to combined streams named <symbol>@<channel>.
type binance struct {
	base
}

type binanceCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func newBinance(marketType model.MarketType, opts ...Option) (Adapter, error) {
	a := &binance{}
	a.exchange = "binance"
	a.marketType = marketType
	a.maxSymbols = 200

	switch marketType {
	case model.MarketTypeSpot:
		a.url = binanceSpotURL
		a.channels = map[model.MessageType]string{
			model.MessageTypeTrade:   "trade",
			model.MessageTypeL2Event: "depth@100ms",
			model.MessageTypeBBO:     "bookTicker",
			model.MessageTypeTicker:  "ticker",
		}
	case model.MarketTypeLinearFuture, model.MarketTypeLinearSwap,
		model.MarketTypeInverseFuture, model.MarketTypeInverseSwap:
		a.url = binanceLinearURL
		if marketType.IsInverse() {
			a.url = binanceInverseURL
		}
		a.channels = map[model.MessageType]string{
			model.MessageTypeTrade:   "aggTrade",
			model.MessageTypeL2Event: "depth@100ms",
			model.MessageTypeBBO:     "bookTicker",
			model.MessageTypeTicker:  "ticker",
		}
		if marketType == model.MarketTypeLinearSwap || marketType == model.MarketTypeInverseSwap {
			a.channels[model.MessageTypeFundingRate] = "markPrice"
		}
	default:
		return nil, model.Unsupported("binance", marketType, "websocket")
	}
	a.apply(opts)
	return a, nil
}

func (a *binance) CommandsPerSecond() float64 { return 5 }

func (a *binance) RenderSubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("SUBSCRIBE", pairs)
}

func (a *binance) RenderUnsubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("UNSUBSCRIBE", pairs)
}

// render puts every stream of a chunk into one command; binance accepts
// streams of different channels in the same request.
func (a *binance) render(method string, pairs []subscription.Pair) ([]string, error) {
	groups, err := a.chunks(pairs)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(groups))
	for _, g := range groups {
		params := make([]string, 0, len(g.Symbols))
		for _, s := range g.Symbols {
			params = append(params, strings.ToLower(s)+"@"+g.Channel)
		}
		cmd, err := marshal(binanceCommand{Method: method, Params: params, ID: a.nextID()})
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// ClassifyControl treats request acks ({"result":null,"id":1}) and error
// notices as misc; combined stream payloads carry "stream" and "data".
func (a *binance) ClassifyControl(raw []byte) Control {
	control := Misc
	peek(raw, func(v *fastjson.Value) {
		if v.Type() != fastjson.TypeObject {
			return
		}
		if v.Exists("stream") && v.Exists("data") {
			control = Normal
			return
		}
		if v.Exists("id") || v.Exists("error") || v.Exists("code") {
			return
		}
		control = Normal
	})
	return control
}
