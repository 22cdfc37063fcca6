package snapshot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"

	"cryptostream/internal/model"
)

// Binance fetches depth snapshots from the spot, USD-M and COIN-M REST APIs.
// The SDK clients carry the shared HTTP client and the per-market base URL.
type Binance struct {
	spot     *binance.Client
	futures  *futures.Client
	delivery *delivery.Client
}

func NewBinance(opts Options) *Binance {
	httpClient := newHTTPClient(opts)

	spot := binance.NewClient("", "")
	spot.HTTPClient = httpClient
	fut := futures.NewClient("", "")
	fut.HTTPClient = httpClient
	del := delivery.NewClient("", "")
	del.HTTPClient = httpClient

	if opts.BaseURL != "" {
		base := trimBase(opts.BaseURL)
		spot.BaseURL = base
		fut.BaseURL = base
		del.BaseURL = base
	}
	return &Binance{spot: spot, futures: fut, delivery: del}
}

func (b *Binance) Exchange() string { return "binance" }

// endpoint returns the HTTP client and depth URL serving marketType.
func (b *Binance) endpoint(marketType model.MarketType) (*http.Client, string, error) {
	switch marketType {
	case model.MarketTypeSpot:
		return b.spot.HTTPClient, trimBase(b.spot.BaseURL) + "/api/v3/depth", nil
	case model.MarketTypeLinearSwap, model.MarketTypeLinearFuture:
		return b.futures.HTTPClient, trimBase(b.futures.BaseURL) + "/fapi/v1/depth", nil
	case model.MarketTypeInverseSwap, model.MarketTypeInverseFuture:
		return b.delivery.HTTPClient, trimBase(b.delivery.BaseURL) + "/dapi/v1/depth", nil
	default:
		return nil, "", model.Unsupported("binance", marketType, "orderbook snapshot")
	}
}

func (b *Binance) Fetch(ctx context.Context, marketType model.MarketType, symbol string, limit int) ([]byte, error) {
	client, endpoint, err := b.endpoint(marketType)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return get(ctx, client, b.Exchange(), fmt.Sprintf("%s?%s", endpoint, q.Encode()))
}
