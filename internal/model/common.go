package model

import (
	"fmt"
	"strings"
)

// MarketType is the instrument category of a subscription. It never changes
// once a connection is created.
type MarketType string

const (
	MarketTypeSpot           MarketType = "spot"
	MarketTypeInverseFuture  MarketType = "inverse_future"
	MarketTypeInverseSwap    MarketType = "inverse_swap"
	MarketTypeLinearFuture   MarketType = "linear_future"
	MarketTypeLinearSwap     MarketType = "linear_swap"
	MarketTypeEuropeanOption MarketType = "european_option"
)

// AllMarketTypes lists every market type. Adapters are tested against this
// list so a new value has to be handled or rejected explicitly.
var AllMarketTypes = []MarketType{
	MarketTypeSpot,
	MarketTypeInverseFuture,
	MarketTypeInverseSwap,
	MarketTypeLinearFuture,
	MarketTypeLinearSwap,
	MarketTypeEuropeanOption,
}

// ParseMarketType converts a configuration value into a MarketType.
func ParseMarketType(s string) (MarketType, error) {
	v := MarketType(strings.ToLower(strings.TrimSpace(s)))
	for _, mt := range AllMarketTypes {
		if mt == v {
			return mt, nil
		}
	}
	return "", fmt.Errorf("unknown market type %q", s)
}

// IsLinear reports whether contracts of this type are margined in the quote
// currency.
func (m MarketType) IsLinear() bool {
	return m == MarketTypeLinearFuture || m == MarketTypeLinearSwap || m == MarketTypeEuropeanOption
}

// IsInverse reports whether contracts of this type are margined in the base
// currency.
func (m MarketType) IsInverse() bool {
	return m == MarketTypeInverseFuture || m == MarketTypeInverseSwap
}

// MessageType is the semantic kind of a data message. It is derived from the
// channel name of every message and never cached.
type MessageType string

const (
	MessageTypeTrade       MessageType = "trade"
	MessageTypeL2Event     MessageType = "l2_event"
	MessageTypeL2TopK      MessageType = "l2_topk"
	MessageTypeBBO         MessageType = "bbo"
	MessageTypeTicker      MessageType = "ticker"
	MessageTypeCandlestick MessageType = "candlestick"
	MessageTypeFundingRate MessageType = "funding_rate"
	MessageTypeOther       MessageType = "other"
)

var allMessageTypes = []MessageType{
	MessageTypeTrade,
	MessageTypeL2Event,
	MessageTypeL2TopK,
	MessageTypeBBO,
	MessageTypeTicker,
	MessageTypeCandlestick,
	MessageTypeFundingRate,
	MessageTypeOther,
}

// ParseMessageType converts a configuration value into a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	v := MessageType(strings.ToLower(strings.TrimSpace(s)))
	for _, mt := range allMessageTypes {
		if mt == v {
			return mt, nil
		}
	}
	return "", fmt.Errorf("unknown message type %q", s)
}

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)
