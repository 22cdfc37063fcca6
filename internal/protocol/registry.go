package protocol

import (
	"fmt"
	"sort"
	"strings"

	"cryptostream/internal/model"
)

type constructor func(marketType model.MarketType, opts ...Option) (Adapter, error)

var constructors = map[string]constructor{
	"binance":     newBinance,
	"bybit":       newBybit,
	"coinbasepro": newCoinbasePro,
	"huobi":       newHuobi,
	"mexc":        newMexc,
	"okx":         newOkx,
}

// New returns the adapter for an exchange and market type.
func New(exchange string, marketType model.MarketType, opts ...Option) (Adapter, error) {
	ctor, ok := constructors[strings.ToLower(exchange)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown exchange %q", model.ErrUnsupportedOperation, exchange)
	}
	return ctor(marketType, opts...)
}

// Exchanges lists the supported exchange names.
func Exchanges() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
