package protocol

import (
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

const (
	mexcSpotURL = "wss://wbs.mexc.com/raw/ws"
	mexcSwapURL = "wss://contract.mexc.com/edge"
)

// mexc spot speaks an array protocol ([event, payload]); swap speaks
// {"method", "param"} objects. Both take one symbol per command.
type mexc struct {
	base
}

type mexcSymbolParam struct {
	Symbol string `json:"symbol"`
}

type mexcSwapCommand struct {
	Method string          `json:"method"`
	Param  mexcSymbolParam `json:"param"`
}

func newMexc(marketType model.MarketType, opts ...Option) (Adapter, error) {
	a := &mexc{}
	a.exchange = "mexc"
	a.marketType = marketType
	a.maxSymbols = 1

	switch marketType {
	case model.MarketTypeSpot:
		a.url = mexcSpotURL
		// One push.symbol stream carries both deals and depth.
		a.channels = map[model.MessageType]string{
			model.MessageTypeTrade:   "symbol",
			model.MessageTypeL2Event: "symbol",
		}
	case model.MarketTypeLinearSwap:
		a.url = mexcSwapURL
		a.channels = map[model.MessageType]string{
			model.MessageTypeTrade:   "deal",
			model.MessageTypeL2Event: "depth",
		}
	default:
		return nil, model.Unsupported("mexc", marketType, "websocket")
	}
	a.apply(opts)
	return a, nil
}

func (a *mexc) Heartbeat() (string, time.Duration) {
	if a.marketType == model.MarketTypeSpot {
		return `["ping"]`, 15 * time.Second
	}
	return `{"method":"ping"}`, 15 * time.Second
}

func (a *mexc) RenderSubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("sub.", pairs)
}

func (a *mexc) RenderUnsubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("unsub.", pairs)
}

func (a *mexc) render(prefix string, pairs []subscription.Pair) ([]string, error) {
	groups, err := a.chunks(pairs)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(groups))
	for _, g := range groups {
		for _, s := range g.Symbols {
			var cmd interface{}
			if a.marketType == model.MarketTypeSpot {
				cmd = []interface{}{prefix + g.Channel, mexcSymbolParam{Symbol: s}}
			} else {
				cmd = mexcSwapCommand{Method: prefix + g.Channel, Param: mexcSymbolParam{Symbol: s}}
			}
			out, err := marshal(cmd)
			if err != nil {
				return nil, err
			}
			commands = append(commands, out)
		}
	}
	return commands, nil
}

// ClassifyControl forwards push frames only: ["push.symbol", {...}] on spot
// and {"channel":"push.deal"} on swap. Acks (rs.*) and pongs are misc.
func (a *mexc) ClassifyControl(raw []byte) Control {
	control := Misc
	peek(raw, func(v *fastjson.Value) {
		var channel string
		switch v.Type() {
		case fastjson.TypeArray:
			arr := v.GetArray()
			if len(arr) < 2 {
				return
			}
			channel = string(arr[0].GetStringBytes())
		case fastjson.TypeObject:
			channel = string(v.GetStringBytes("channel"))
		}
		if strings.HasPrefix(channel, "push.") {
			control = Normal
		}
	})
	return control
}
