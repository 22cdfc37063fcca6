package symbols

import (
	"strings"
	"sync"

	"cryptostream/internal/model"
)

var (
	overridesMu sync.RWMutex
	overrides   = map[string]float64{}
)

// linearValues holds base-currency contract sizes for exchanges that quote
// linear derivatives in contracts.
var linearValues = map[string]map[string]float64{
	"okx": {
		"BTC": 0.01, "ETH": 0.1, "LTC": 1, "BCH": 0.1, "SOL": 1, "DOT": 1,
		"LINK": 1, "XRP": 100, "ADA": 100, "DOGE": 1000, "TRX": 1000,
	},
	"huobi": {
		"BTC": 0.001, "ETH": 0.01, "LTC": 0.1, "BCH": 0.01, "SOL": 1, "DOT": 1,
		"LINK": 0.1, "XRP": 10, "ADA": 10, "DOGE": 100, "TRX": 100,
	},
	"mexc": {
		"BTC": 0.0001, "ETH": 0.01, "SOL": 0.1, "XRP": 1, "DOGE": 100,
	},
}

func overrideKey(exchange string, marketType model.MarketType, symbol string) string {
	return strings.ToLower(exchange) + "|" + string(marketType) + "|" + strings.ToUpper(symbol)
}

// RegisterContractValue records the contract size of one instrument, usually
// taken from the market catalog. It takes precedence over built-in values.
func RegisterContractValue(exchange string, marketType model.MarketType, symbol string, value float64) {
	overridesMu.Lock()
	overrides[overrideKey(exchange, marketType, symbol)] = value
	overridesMu.Unlock()
}

// ContractValue returns the size of one contract: in base currency for linear
// instruments and options, in USD for inverse instruments. ok is false for
// spot markets and unknown instruments.
func ContractValue(exchange string, marketType model.MarketType, symbol string) (value float64, ok bool) {
	overridesMu.RLock()
	v, found := overrides[overrideKey(exchange, marketType, symbol)]
	overridesMu.RUnlock()
	if found {
		return v, true
	}
	if marketType == model.MarketTypeSpot {
		return 0, false
	}
	exchange = strings.ToLower(exchange)
	base, err := Base(exchange, marketType, symbol)
	if err != nil {
		return 0, false
	}

	if marketType.IsInverse() {
		switch exchange {
		case "bybit":
			return 1, true
		case "binance", "okx", "huobi":
			if base == "BTC" {
				return 100, true
			}
			return 10, true
		}
		return 0, false
	}
	switch exchange {
	case "binance", "bybit":
		return 1, true
	}
	v, found = linearValues[exchange][base]
	return v, found
}
