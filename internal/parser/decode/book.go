package decode

import (
	"sort"

	"cryptostream/internal/model"
	"cryptostream/internal/symbols"
)

// Sizer converts a wire quantity into base, quote and contract amounts.
type Sizer struct {
	marketType    model.MarketType
	contractValue float64
	contracts     bool
}

// BaseSizer is used when the wire quantity is already in base currency.
func BaseSizer(marketType model.MarketType) Sizer {
	return Sizer{marketType: marketType}
}

// ContractSizer is used when the wire quantity is a number of contracts. The
// contract value comes from the symbols registry; unknown instruments are a
// parse error.
func ContractSizer(exchange string, marketType model.MarketType, symbol string) (Sizer, error) {
	cv, ok := symbols.ContractValue(exchange, marketType, symbol)
	if !ok {
		return Sizer{}, model.ParseFailure(exchange, "unknown contract value for %s %s", marketType, symbol)
	}
	return Sizer{marketType: marketType, contractValue: cv, contracts: true}, nil
}

// Sizes returns the amount in base and quote currency, plus the contract
// count when the wire quantity was in contracts. Linear contracts are sized
// in base, inverse contracts in quote.
func (s Sizer) Sizes(price, qty float64) (base, quote float64, contracts *float64) {
	if !s.contracts {
		return qty, qty * price, nil
	}
	c := qty
	if s.marketType.IsInverse() {
		quote = qty * s.contractValue
		if price > 0 {
			base = quote / price
		}
		return base, quote, &c
	}
	base = qty * s.contractValue
	return base, base * price, &c
}

// Order builds one book level.
func (s Sizer) Order(price, qty float64) model.Order {
	base, quote, contracts := s.Sizes(price, qty)
	return model.Order{Price: price, QuantityBase: base, QuantityQuote: quote, QuantityContract: contracts}
}

// Levels decodes [price, quantity, ...] arrays. Trailing elements such as
// order counts are ignored.
func Levels(exchange, side string, raw [][]Number, s Sizer) ([]model.Order, error) {
	out := make([]model.Order, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			return nil, model.ParseFailure(exchange, "%s level has %d elements", side, len(lvl))
		}
		o, err := level(exchange, side, lvl[0], lvl[1], s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// PQ is a level encoded as an object.
type PQ struct {
	P Number `json:"p"`
	Q Number `json:"q"`
}

// ObjectLevels decodes {"p":..,"q":..} levels.
func ObjectLevels(exchange, side string, raw []PQ, s Sizer) ([]model.Order, error) {
	out := make([]model.Order, 0, len(raw))
	for _, lvl := range raw {
		o, err := level(exchange, side, lvl.P, lvl.Q, s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func level(exchange, side string, p, q Number, s Sizer) (model.Order, error) {
	price, err := NonNegative(exchange, side+" price", p)
	if err != nil {
		return model.Order{}, err
	}
	qty, err := NonNegative(exchange, side+" quantity", q)
	if err != nil {
		return model.Order{}, err
	}
	return s.Order(price, qty), nil
}

// Book collapses duplicate prices (the last level wins) and sorts asks
// ascending and bids descending. Zero quantities are kept; they delete the
// level in incremental updates.
func Book(asks, bids []model.Order) ([]model.Order, []model.Order) {
	asks = dedupe(asks)
	bids = dedupe(bids)
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	return asks, bids
}

func dedupe(levels []model.Order) []model.Order {
	if len(levels) < 2 {
		return levels
	}
	index := make(map[float64]int, len(levels))
	out := make([]model.Order, 0, len(levels))
	for _, l := range levels {
		if i, ok := index[l.Price]; ok {
			out[i] = l
			continue
		}
		index[l.Price] = len(out)
		out = append(out, l)
	}
	return out
}
