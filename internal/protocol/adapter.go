package protocol

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/valyala/fastjson"

	"cryptostream/internal/model"
	"cryptostream/internal/subscription"
)

// Control tells the session engine whether an inbound frame carries market
// data or protocol plumbing.
type Control int

const (
	// Normal frames are forwarded to the caller untouched.
	Normal Control = iota
	// Misc frames (acks, heartbeats, error notices, garbage) are consumed by
	// the engine and never forwarded.
	Misc
)

func (c Control) String() string {
	if c == Misc {
		return "misc"
	}
	return "normal"
}

// Adapter renders subscription commands and filters control frames for one
// exchange and market type.
type Adapter interface {
	Exchange() string
	MarketType() model.MarketType
	URL() string
	// Channel returns the exchange channel carrying kind, or an
	// ErrUnsupportedOperation error. Several kinds may share one channel
	// (mexc spot trades and depth, bybit tickers and funding rates); such
	// kinds are subscribed and unsubscribed together.
	Channel(kind model.MessageType) (string, error)
	RenderSubscribe(pairs []subscription.Pair) ([]string, error)
	RenderUnsubscribe(pairs []subscription.Pair) ([]string, error)
	ClassifyControl(raw []byte) Control
}

// Heartbeater is implemented by adapters whose exchange expects an
// application level ping.
type Heartbeater interface {
	Heartbeat() (msg string, interval time.Duration)
}

// Responder is implemented by adapters whose exchange sends pings that must
// be answered.
type Responder interface {
	Respond(raw []byte) (reply string, ok bool)
}

// FrameDecoder is implemented by adapters whose exchange sends encoded
// frames.
type FrameDecoder interface {
	DecodeFrame(messageType int, data []byte) ([]byte, error)
}

// CommandLimiter is implemented by adapters whose exchange limits the rate of
// inbound commands.
type CommandLimiter interface {
	CommandsPerSecond() float64
}

// Option configures an adapter.
type Option func(*base)

// WithURL overrides the default endpoint.
func WithURL(url string) Option {
	return func(b *base) {
		if url != "" {
			b.url = url
		}
	}
}

// WithMaxSymbols overrides the exchange's symbols-per-command limit.
func WithMaxSymbols(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.maxSymbols = n
		}
	}
}

// WithNotification selects the exchange's notification endpoint instead of
// the market data one. Only huobi serves funding rates that way; other
// adapters ignore it.
func WithNotification() Option {
	return func(b *base) { b.notification = true }
}

// base holds the per-exchange constants shared by every adapter.
type base struct {
	exchange     string
	marketType   model.MarketType
	url          string
	notification bool
	// maxSymbols is the largest number of symbols a single command may
	// carry; zero means unlimited.
	maxSymbols int
	channels   map[model.MessageType]string
	id         atomic.Int64
}

func (b *base) Exchange() string             { return b.exchange }
func (b *base) MarketType() model.MarketType { return b.marketType }
func (b *base) URL() string                  { return b.url }

func (b *base) Channel(kind model.MessageType) (string, error) {
	ch, ok := b.channels[kind]
	if !ok {
		return "", model.Unsupported(b.exchange, b.marketType, string(kind))
	}
	return ch, nil
}

func (b *base) nextID() int64 {
	return b.id.Add(1)
}

func (b *base) apply(opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

// chunks groups pairs by channel and splits every group by the symbol limit.
func (b *base) chunks(pairs []subscription.Pair) ([]subscription.Group, error) {
	if err := subscription.Validate(pairs); err != nil {
		return nil, err
	}
	var out []subscription.Group
	for _, g := range subscription.GroupByChannel(pairs) {
		for _, symbols := range subscription.Chunk(g.Symbols, b.maxSymbols) {
			out = append(out, subscription.Group{Channel: g.Channel, Symbols: symbols})
		}
	}
	return out, nil
}

func marshal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var parserPool fastjson.ParserPool

// peek parses raw as a JSON document and calls fn with it. It reports false
// when raw is not valid JSON.
func peek(raw []byte, fn func(v *fastjson.Value)) bool {
	p := parserPool.Get()
	defer parserPool.Put(p)
	v, err := p.ParseBytes(raw)
	if err != nil {
		return false
	}
	fn(v)
	return true
}
