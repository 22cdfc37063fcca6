package snapshot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"cryptostream/internal/model"
)

const (
	okxBaseURL  = "https://www.okx.com"
	okxMaxDepth = 400
	userAgent   = "cryptostream/1.0"
)

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

func withUserAgent(client *http.Client) *http.Client {
	client.Transport = userAgentTransport{agent: userAgent, base: client.Transport}
	return client
}

// Okx fetches /api/v5/market/books. The instrument id doubles as the
// market type, so marketType only gates unsupported markets.
type Okx struct {
	client *http.Client
	base   string
}

func NewOkx(opts Options) *Okx {
	base := okxBaseURL
	if opts.BaseURL != "" {
		base = trimBase(opts.BaseURL)
	}
	return &Okx{client: withUserAgent(newHTTPClient(opts)), base: base}
}

func (o *Okx) Exchange() string { return "okx" }

func (o *Okx) Fetch(ctx context.Context, marketType model.MarketType, symbol string, limit int) ([]byte, error) {
	if marketType == model.MarketTypeEuropeanOption {
		return nil, model.Unsupported(o.Exchange(), marketType, "orderbook snapshot")
	}
	q := url.Values{}
	q.Set("instId", symbol)
	if limit > 0 {
		if limit > okxMaxDepth {
			limit = okxMaxDepth
		}
		q.Set("sz", strconv.Itoa(limit))
	}
	return get(ctx, o.client, o.Exchange(), o.base+"/api/v5/market/books?"+q.Encode())
}
