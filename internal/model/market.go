package model

import "time"

// Fees is the fee schedule of a market.
type Fees struct {
	Maker float64 `json:"maker" yaml:"maker"`
	Taker float64 `json:"taker" yaml:"taker"`
	// Percentage is true when Maker and Taker are fractions of the notional
	// rather than a flat amount.
	Percentage bool `json:"percentage" yaml:"percentage"`
}

// Precision holds the number of decimal digits.
type Precision struct {
	Price int  `json:"price" yaml:"price"`
	Base  *int `json:"base,omitempty" yaml:"base"`
	Quote *int `json:"quote,omitempty" yaml:"quote"`
}

// MinQuantity is the minimum order size.
type MinQuantity struct {
	Base  *float64 `json:"base,omitempty" yaml:"base"`
	Quote *float64 `json:"quote,omitempty" yaml:"quote"`
}

// Market describes a tradable instrument. Markets are owned by the catalog
// and are read-only for everything else.
type Market struct {
	Exchange      string                 `json:"exchange" yaml:"exchange"`
	MarketType    MarketType             `json:"market_type" yaml:"market_type"`
	Symbol        string                 `json:"symbol" yaml:"symbol"`
	BaseID        string                 `json:"base_id" yaml:"base_id"`
	QuoteID       string                 `json:"quote_id" yaml:"quote_id"`
	Base          string                 `json:"base" yaml:"base"`
	Quote         string                 `json:"quote" yaml:"quote"`
	Active        bool                   `json:"active" yaml:"active"`
	Margin        bool                   `json:"margin" yaml:"margin"`
	Fees          Fees                   `json:"fees" yaml:"fees"`
	Precision     Precision              `json:"precision" yaml:"precision"`
	MinQuantity   MinQuantity            `json:"min_quantity" yaml:"min_quantity"`
	ContractValue *float64               `json:"contract_value,omitempty" yaml:"contract_value"`
	DeliveryDate  *time.Time             `json:"delivery_date,omitempty" yaml:"delivery_date"`
	Info          map[string]interface{} `json:"info,omitempty" yaml:"info"`
}

// Pair returns the unified BASE/QUOTE symbol.
func (m Market) Pair() string {
	return m.Base + "/" + m.Quote
}

// RawMessage is a data-plane frame as received from an exchange connection.
type RawMessage struct {
	Exchange     string
	MarketType   MarketType
	ConnectionID string
	ReceivedAt   time.Time
	Data         []byte
}
