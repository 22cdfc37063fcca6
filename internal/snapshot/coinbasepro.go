package snapshot

import (
	"context"
	"net/http"
	"net/url"

	"cryptostream/internal/model"
)

const coinbaseProBaseURL = "https://api.exchange.coinbase.com"

// CoinbasePro fetches the aggregated level 2 book of a product. The
// endpoint has no depth parameter, so limit is ignored.
type CoinbasePro struct {
	client *http.Client
	base   string
}

func NewCoinbasePro(opts Options) *CoinbasePro {
	base := coinbaseProBaseURL
	if opts.BaseURL != "" {
		base = trimBase(opts.BaseURL)
	}
	return &CoinbasePro{client: withUserAgent(newHTTPClient(opts)), base: base}
}

func (c *CoinbasePro) Exchange() string { return "coinbasepro" }

func (c *CoinbasePro) Fetch(ctx context.Context, marketType model.MarketType, symbol string, limit int) ([]byte, error) {
	if marketType != model.MarketTypeSpot {
		return nil, model.Unsupported(c.Exchange(), marketType, "orderbook snapshot")
	}
	return get(ctx, c.client, c.Exchange(), c.base+"/products/"+url.PathEscape(symbol)+"/book?level=2")
}
