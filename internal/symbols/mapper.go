package symbols

import (
	"fmt"
	"strings"

	"cryptostream/internal/model"
)

// quotes lists the quote currencies recognised in concatenated symbols such
// as BTCUSDT, longest first so USDT wins over USD.
var quotes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "USDD", "USD", "EUR", "TRY", "BRL", "DAI", "BTC", "ETH", "BNB", "HT"}

// ToBinance converts exchange-specific symbol formats to Binance style: upper
// case without separators, BTC instead of XBT, no 1000x multiplier prefixes.
func ToBinance(exchange, sym string) string {
	switch strings.ToLower(exchange) {
	case "binance":
		sym = strings.ToUpper(sym)
		if i := strings.IndexByte(sym, '_'); i > 0 {
			sym = sym[:i]
		}
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "1000SHIBUSDT":
			sym = "SHIBUSDT"
		}
	case "bybit":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "SHIB1000USDT":
			sym = "SHIBUSDT"
		}
	case "coinbasepro", "huobi":
		sym = strings.ToUpper(strings.ReplaceAll(sym, "-", ""))
	case "mexc":
		sym = strings.ReplaceAll(sym, "_", "")
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
		sym = strings.ReplaceAll(sym, "-", "")
	}
	if strings.HasPrefix(sym, "XBT") {
		sym = "BTC" + sym[3:]
	}
	return sym
}

// NormalizePair maps an exchange-native symbol to the unified BASE/QUOTE
// form, e.g. okx BTC-USDT-SWAP, huobi btcusdt and binance BTCUSD_PERP.
func NormalizePair(exchange string, marketType model.MarketType, symbol string) (string, error) {
	base, quote, err := split(strings.ToLower(exchange), marketType, symbol)
	if err != nil {
		return "", err
	}
	if base == "XBT" {
		base = "BTC"
	}
	return base + "/" + quote, nil
}

// Base returns the unified base currency of symbol.
func Base(exchange string, marketType model.MarketType, symbol string) (string, error) {
	pair, err := NormalizePair(exchange, marketType, symbol)
	if err != nil {
		return "", err
	}
	return pair[:strings.IndexByte(pair, '/')], nil
}

func split(exchange string, marketType model.MarketType, symbol string) (string, string, error) {
	if symbol == "" {
		return "", "", fmt.Errorf("empty %s symbol", exchange)
	}
	sym := strings.ToUpper(symbol)
	switch exchange {
	case "okx", "coinbasepro":
		return dashed(exchange, sym)
	case "mexc":
		parts := strings.Split(sym, "_")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("invalid mexc symbol %q", symbol)
		}
		return parts[0], parts[1], nil
	case "huobi":
		switch marketType {
		case model.MarketTypeSpot:
			return suffixed(exchange, sym)
		case model.MarketTypeInverseFuture:
			// BTC_CQ or BTC210625
			base := strings.TrimRight(strings.SplitN(sym, "_", 2)[0], "0123456789")
			if base == "" {
				return "", "", fmt.Errorf("invalid huobi symbol %q", symbol)
			}
			return base, "USD", nil
		default:
			return dashed(exchange, sym)
		}
	case "binance":
		return suffixed(exchange, ToBinance(exchange, sym))
	case "bybit":
		if strings.Contains(sym, "-") {
			// USDC settled futures such as BTC-29DEC23
			base := strings.SplitN(sym, "-", 2)[0]
			for _, q := range quotes {
				if strings.HasSuffix(base, q) && len(base) > len(q) {
					return base[:len(base)-len(q)], q, nil
				}
			}
			return base, "USDC", nil
		}
		if strings.HasSuffix(sym, "PERP") && len(sym) > 4 {
			return sym[:len(sym)-4], "USDC", nil
		}
		if marketType == model.MarketTypeInverseFuture && len(sym) > 3 {
			// BTCUSDH24: strip the month code and year
			sym = sym[:len(sym)-3]
		}
		return suffixed(exchange, ToBinance(exchange, sym))
	default:
		return "", "", fmt.Errorf("unknown exchange %q", exchange)
	}
}

func dashed(exchange, sym string) (string, string, error) {
	parts := strings.Split(sym, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid %s symbol %q", exchange, sym)
	}
	return parts[0], parts[1], nil
}

func suffixed(exchange, sym string) (string, string, error) {
	for _, q := range quotes {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			return sym[:len(sym)-len(q)], q, nil
		}
	}
	return "", "", fmt.Errorf("unknown quote currency in %s symbol %q", exchange, sym)
}
