package protocol

import (
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

const okxPublicURL = "wss://ws.okx.com:8443/ws/v5/public"

type okx struct {
	base
}

type okxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxCommand struct {
	Op   string   `json:"op"`
	Args []okxArg `json:"args"`
}

func newOkx(marketType model.MarketType, opts ...Option) (Adapter, error) {
	a := &okx{}
	a.exchange = "okx"
	a.marketType = marketType
	a.url = okxPublicURL
	a.maxSymbols = 100

	switch marketType {
	case model.MarketTypeSpot, model.MarketTypeLinearFuture, model.MarketTypeInverseFuture,
		model.MarketTypeEuropeanOption:
		a.channels = okxChannels()
	case model.MarketTypeLinearSwap, model.MarketTypeInverseSwap:
		a.channels = okxChannels()
		a.channels[model.MessageTypeFundingRate] = "funding-rate"
	default:
		return nil, model.Unsupported("okx", marketType, "websocket")
	}
	a.apply(opts)
	return a, nil
}

func okxChannels() map[model.MessageType]string {
	return map[model.MessageType]string{
		model.MessageTypeTrade:   "trades",
		model.MessageTypeL2Event: "books",
		model.MessageTypeBBO:     "bbo-tbt",
		model.MessageTypeTicker:  "tickers",
	}
}

func (a *okx) Heartbeat() (string, time.Duration) {
	return "ping", 25 * time.Second
}

// Respond answers the server's text ping.
func (a *okx) Respond(raw []byte) (string, bool) {
	if strings.TrimSpace(string(raw)) == "ping" {
		return "pong", true
	}
	return "", false
}

func (a *okx) CommandsPerSecond() float64 { return 3 }

func (a *okx) RenderSubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("subscribe", pairs)
}

func (a *okx) RenderUnsubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("unsubscribe", pairs)
}

func (a *okx) render(op string, pairs []subscription.Pair) ([]string, error) {
	groups, err := a.chunks(pairs)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(groups))
	for _, g := range groups {
		args := make([]okxArg, 0, len(g.Symbols))
		for _, s := range g.Symbols {
			args = append(args, okxArg{Channel: g.Channel, InstID: s})
		}
		cmd, err := marshal(okxCommand{Op: op, Args: args})
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// ClassifyControl treats event frames ({"event":"subscribe"}, {"event":"error"})
// and the text pong as misc.
func (a *okx) ClassifyControl(raw []byte) Control {
	control := Misc
	peek(raw, func(v *fastjson.Value) {
		if v.Type() != fastjson.TypeObject || v.Exists("event") {
			return
		}
		control = Normal
	})
	return control
}
