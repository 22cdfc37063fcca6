package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"cryptostream/internal/model"
)

const bybitBaseURL = "https://api.bybit.com"

// Bybit fetches /v5/market/orderbook through the official SDK.
type Bybit struct {
	client *bybit.Client
}

func NewBybit(opts Options) *Bybit {
	base := bybitBaseURL
	if opts.BaseURL != "" {
		base = trimBase(opts.BaseURL)
	}
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = newHTTPClient(opts)
	return &Bybit{client: client}
}

func (b *Bybit) Exchange() string { return "bybit" }

func category(marketType model.MarketType) (string, error) {
	switch marketType {
	case model.MarketTypeSpot:
		return "spot", nil
	case model.MarketTypeLinearSwap, model.MarketTypeLinearFuture:
		return "linear", nil
	case model.MarketTypeInverseSwap, model.MarketTypeInverseFuture:
		return "inverse", nil
	default:
		return "", model.Unsupported("bybit", marketType, "orderbook snapshot")
	}
}

// Fetch returns the SDK response re-encoded in the REST envelope
// ({"retCode":..,"result":..}) so the parser sees the wire layout.
func (b *Bybit) Fetch(ctx context.Context, marketType model.MarketType, symbol string, limit int) ([]byte, error) {
	cat, err := category(marketType)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{
		"category": cat,
		"symbol":   symbol,
	}
	if limit > 0 {
		params["limit"] = limit
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, model.Transport(b.Exchange(), err)
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal orderbook: %w", err)
	}
	return payload, nil
}
