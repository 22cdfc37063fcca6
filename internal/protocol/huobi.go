package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

const (
	huobiSpotURL          = "wss://api.huobi.pro/ws"
	huobiInverseFutureURL = "wss://api.hbdm.com/ws"
	huobiInverseSwapURL   = "wss://api.hbdm.com/swap-ws"
	huobiLinearSwapURL    = "wss://api.hbdm.com/linear-swap-ws"
	huobiOptionURL        = "wss://api.hbdm.com/option-ws"
	huobiInverseNotifyURL = "wss://api.hbdm.com/swap-notification"
	huobiLinearNotifyURL  = "wss://api.hbdm.com/linear-swap-notification"
	huobiFundingChannel   = "funding_rate"
)

// huobi sends one topic per command and gzips every frame. Funding rates
// are only pushed on the swap notification endpoints, so an adapter built
// with WithNotification offers funding_rate alone and the market data
// adapters never offer it.
type huobi struct {
	base
}

type huobiMarketCommand struct {
	Sub      string `json:"sub,omitempty"`
	Unsub    string `json:"unsub,omitempty"`
	ID       string `json:"id"`
	DataType string `json:"data_type,omitempty"`
}

type huobiNotifyCommand struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	Cid   string `json:"cid"`
}

func newHuobi(marketType model.MarketType, opts ...Option) (Adapter, error) {
	a := &huobi{}
	a.exchange = "huobi"
	a.marketType = marketType
	a.maxSymbols = 1
	a.channels = map[model.MessageType]string{
		model.MessageTypeTrade:   "trade.detail",
		model.MessageTypeL2Event: "depth.size_20.high_freq",
		model.MessageTypeL2TopK:  "depth.step0",
		model.MessageTypeBBO:     "bbo",
		model.MessageTypeTicker:  "detail",
	}

	var notifyURL string
	switch marketType {
	case model.MarketTypeSpot:
		a.url = huobiSpotURL
		a.channels[model.MessageTypeL2Event] = "mbp.20"
	case model.MarketTypeInverseFuture:
		a.url = huobiInverseFutureURL
	case model.MarketTypeInverseSwap:
		a.url = huobiInverseSwapURL
		notifyURL = huobiInverseNotifyURL
	case model.MarketTypeLinearFuture, model.MarketTypeLinearSwap:
		a.url = huobiLinearSwapURL
		if marketType == model.MarketTypeLinearSwap {
			notifyURL = huobiLinearNotifyURL
		}
	case model.MarketTypeEuropeanOption:
		a.url = huobiOptionURL
	default:
		return nil, model.Unsupported("huobi", marketType, "websocket")
	}

	marketURL := a.url
	a.apply(opts)
	if a.notification {
		if notifyURL == "" {
			return nil, model.Unsupported("huobi", marketType, "notification endpoint")
		}
		if a.url == marketURL {
			a.url = notifyURL
		}
		a.channels = map[model.MessageType]string{model.MessageTypeFundingRate: huobiFundingChannel}
	}
	return a, nil
}

func (a *huobi) RenderSubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render(true, pairs)
}

func (a *huobi) RenderUnsubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render(false, pairs)
}

func (a *huobi) render(subscribe bool, pairs []subscription.Pair) ([]string, error) {
	groups, err := a.chunks(pairs)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(groups))
	for _, g := range groups {
		for _, s := range g.Symbols {
			var cmd interface{}
			id := fmt.Sprintf("id%d", a.nextID())
			if g.Channel == huobiFundingChannel {
				op := "unsub"
				if subscribe {
					op = "sub"
				}
				cmd = huobiNotifyCommand{Op: op, Topic: "public." + s + ".funding_rate", Cid: id}
			} else {
				topic := "market." + s + "." + g.Channel
				c := huobiMarketCommand{ID: id}
				if subscribe {
					c.Sub = topic
					if strings.HasSuffix(g.Channel, "high_freq") {
						c.DataType = "incremental"
					}
				} else {
					c.Unsub = topic
				}
				cmd = c
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

// DecodeFrame inflates gzip encoded binary frames.
func (a *huobi) DecodeFrame(messageType int, data []byte) ([]byte, error) {
	if messageType != websocket.BinaryMessage {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("huobi: gzip header: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("huobi: gzip body: %w", err)
	}
	return out, nil
}

// Respond answers {"ping":n} on market endpoints and {"op":"ping"} on
// notification endpoints.
func (a *huobi) Respond(raw []byte) (string, bool) {
	var reply string
	peek(raw, func(v *fastjson.Value) {
		if ping := v.Get("ping"); ping != nil {
			reply = `{"pong":` + ping.String() + `}`
			return
		}
		if string(v.GetStringBytes("op")) == "ping" {
			ts := "0"
			if t := v.Get("ts"); t != nil {
				ts = t.String()
			}
			reply = `{"op":"pong","ts":` + ts + `}`
		}
	})
	return reply, reply != ""
}

// ClassifyControl forwards channel pushes and funding notifications; acks,
// pings and errors are misc.
func (a *huobi) ClassifyControl(raw []byte) Control {
	control := Misc
	peek(raw, func(v *fastjson.Value) {
		if v.Type() != fastjson.TypeObject {
			return
		}
		if v.Exists("ch") && v.Exists("tick") {
			control = Normal
			return
		}
		if string(v.GetStringBytes("op")) == "notify" {
			control = Normal
		}
	})
	return control
}
