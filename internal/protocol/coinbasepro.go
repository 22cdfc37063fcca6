package protocol

import (
	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

const coinbaseProURL = "wss://ws-feed.pro.coinbase.com"

// coinbasePro only has a spot market.
type coinbasePro struct {
	base
}

type coinbaseChannel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

type coinbaseCommand struct {
	Type     string            `json:"type"`
	Channels []coinbaseChannel `json:"channels"`
}

func newCoinbasePro(marketType model.MarketType, opts ...Option) (Adapter, error) {
	if marketType != model.MarketTypeSpot {
		return nil, model.Unsupported("coinbasepro", marketType, "websocket")
	}
	a := &coinbasePro{}
	a.exchange = "coinbasepro"
	a.marketType = marketType
	a.url = coinbaseProURL
	a.channels = map[model.MessageType]string{
		model.MessageTypeTrade:   "matches",
		model.MessageTypeL2Event: "level2",
		model.MessageTypeTicker:  "ticker",
	}
	a.apply(opts)
	return a, nil
}

func (a *coinbasePro) RenderSubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("subscribe", pairs)
}

func (a *coinbasePro) RenderUnsubscribe(pairs []subscription.Pair) ([]string, error) {
	return a.render("unsubscribe", pairs)
}

// render places every channel in a single command unless a symbol limit is
// configured, in which case each chunk becomes its own command.
func (a *coinbasePro) render(action string, pairs []subscription.Pair) ([]string, error) {
	groups, err := a.chunks(pairs)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	if a.maxSymbols == 0 {
		cmd := coinbaseCommand{Type: action}
		for _, g := range groups {
			cmd.Channels = append(cmd.Channels, coinbaseChannel{Name: g.Channel, ProductIDs: g.Symbols})
		}
		out, err := marshal(cmd)
		if err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
	commands := make([]string, 0, len(groups))
	for _, g := range groups {
		out, err := marshal(coinbaseCommand{
			Type:     action,
			Channels: []coinbaseChannel{{Name: g.Channel, ProductIDs: g.Symbols}},
		})
		if err != nil {
			return nil, err
		}
		commands = append(commands, out)
	}
	return commands, nil
}

// ClassifyControl treats error, subscriptions and heartbeat frames as misc.
func (a *coinbasePro) ClassifyControl(raw []byte) Control {
	control := Misc
	peek(raw, func(v *fastjson.Value) {
		switch string(v.GetStringBytes("type")) {
		case "", "error", "subscriptions", "heartbeat":
		default:
			control = Normal
		}
	})
	return control
}
