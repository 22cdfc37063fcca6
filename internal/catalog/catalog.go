// Package catalog holds the static market metadata the normalizer uses to
// fill unified pairs and contract sizes.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cryptostream/internal/model"
	"cryptostream/internal/symbols"
)

// File is the on-disk layout of a catalog.
type File struct {
	Markets []model.Market `yaml:"markets"`
}

// Catalog indexes markets by exchange, market type and native symbol. It is
// read-only after Load.
type Catalog struct {
	markets map[string]model.Market
}

func key(exchange string, marketType model.MarketType, symbol string) string {
	return strings.ToLower(exchange) + "|" + string(marketType) + "|" + strings.ToUpper(symbol)
}

// Load reads a YAML catalog from path. Contract values found in the file are
// registered with the symbols package so parsers size contracts with them.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cannot parse catalog: %w", err)
	}
	return New(f.Markets)
}

// New builds a catalog from markets.
func New(markets []model.Market) (*Catalog, error) {
	c := &Catalog{markets: make(map[string]model.Market, len(markets))}
	for i, m := range markets {
		if m.Exchange == "" || m.Symbol == "" {
			return nil, fmt.Errorf("market %d: exchange and symbol are required", i)
		}
		if _, err := model.ParseMarketType(string(m.MarketType)); err != nil {
			return nil, fmt.Errorf("market %s %s: %w", m.Exchange, m.Symbol, err)
		}
		if m.Base == "" || m.Quote == "" {
			base, quote, ok := split(m)
			if !ok {
				return nil, fmt.Errorf("market %s %s: base and quote are required", m.Exchange, m.Symbol)
			}
			m.Base, m.Quote = base, quote
		}
		if m.ContractValue != nil {
			if *m.ContractValue <= 0 {
				return nil, fmt.Errorf("market %s %s: contract_value must be positive", m.Exchange, m.Symbol)
			}
			symbols.RegisterContractValue(m.Exchange, m.MarketType, m.Symbol, *m.ContractValue)
		}
		c.markets[key(m.Exchange, m.MarketType, m.Symbol)] = m
	}
	return c, nil
}

func split(m model.Market) (string, string, bool) {
	pair, err := symbols.NormalizePair(m.Exchange, m.MarketType, m.Symbol)
	if err != nil {
		return "", "", false
	}
	i := strings.IndexByte(pair, '/')
	return pair[:i], pair[i+1:], true
}

// Lookup returns the market of symbol. Symbols are matched case-insensitively.
func (c *Catalog) Lookup(exchange string, marketType model.MarketType, symbol string) (model.Market, bool) {
	if c == nil {
		return model.Market{}, false
	}
	m, ok := c.markets[key(exchange, marketType, symbol)]
	return m, ok
}

// Pair returns the unified pair of symbol, preferring the catalog and
// falling back to symbol normalization.
func (c *Catalog) Pair(exchange string, marketType model.MarketType, symbol string) string {
	if m, ok := c.Lookup(exchange, marketType, symbol); ok {
		return m.Pair()
	}
	pair, err := symbols.NormalizePair(exchange, marketType, symbol)
	if err != nil {
		return ""
	}
	return pair
}

// Len is the number of markets.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.markets)
}
