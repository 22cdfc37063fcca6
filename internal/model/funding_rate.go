package model

// FundingRate is a perpetual swap funding rate notice.
type FundingRate struct {
	Exchange      string     `json:"exchange"`
	MarketType    MarketType `json:"market_type"`
	Symbol        string     `json:"symbol"`
	Pair          string     `json:"pair"`
	FundingRate   float64    `json:"funding_rate"`
	FundingTime   int64      `json:"funding_time"`
	EstimatedRate *float64   `json:"estimated_rate,omitempty"`
	Timestamp     int64      `json:"timestamp"`
}

func (f FundingRate) Kind() MessageType { return MessageTypeFundingRate }

func (f FundingRate) Key() string { return key(f.Exchange, f.MarketType, f.Symbol) }
