package protocol

import (
	"time"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

const bybitBaseURL = "wss://stream.bybit.com/v5/public/"

type bybit struct {
	base
}

type bybitCommand struct {
	ReqID string   `json:"req_id,omitempty"`
	Op    string   `json:"op"`
	Args  []string `json:"args"`
}

func newBybit(marketType model.MarketType, opts ...Option) (Adapter, error) {
	a := &bybit{}
	a.exchange = "bybit"
	a.marketType = marketType
	a.channels = map[model.MessageType]string{
		model.MessageTypeTrade:   "publicTrade",
		model.MessageTypeL2Event: "orderbook.50",
		model.MessageTypeTicker:  "tickers",
	}

	switch marketType {
	case model.MarketTypeSpot:
		a.url = bybitBaseURL + "spot"
		a.maxSymbols = 10
	case model.MarketTypeLinearFuture, model.MarketTypeLinearSwap:
		a.url = bybitBaseURL + "linear"
	case model.MarketTypeInverseFuture, model.MarketTypeInverseSwap:
		a.url = bybitBaseURL + "inverse"
	default:
		return nil, model.Unsupported("bybit", marketType, "websocket")
	}
	// Swap tickers carry the funding rate.
	if marketType == model.MarketTypeLinearSwap || marketType == model.MarketTypeInverseSwap {
		a.channels[model.MessageTypeFundingRate] = "tickers"
	}
	a.apply(opts)
	return a, nil
}

func (a *bybit) Heartbeat() (string, time.Duration) {
	return `{"op":"ping"}`, 20 * time.Second
}

func (a *bybit) RenderSubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("subscribe", pairs)
}

func (a *bybit) RenderUnsubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("unsubscribe", pairs)
}

func (a *bybit) render(op string, pairs []subscription.Pair) ([]string, error) {
	groups, err := a.chunks(pairs)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(groups))
	for _, g := range groups {
		args := make([]string, 0, len(g.Symbols))
		for _, s := range g.Symbols {
			args = append(args, g.Channel+"."+s)
		}
		cmd, err := marshal(bybitCommand{Op: op, Args: args})
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// ClassifyControl treats every frame with an "op" field (subscribe results,
// pong) as misc.
func (a *bybit) ClassifyControl(raw []byte) Control {
	control := Misc
	peek(raw, func(v *fastjson.Value) {
		if v.Type() != fastjson.TypeObject || v.Exists("op") || v.Exists("success") {
			return
		}
		control = Normal
	})
	return control
}
