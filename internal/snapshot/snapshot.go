// Package snapshot polls REST order book snapshots and emits them as
// canonical records.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"cryptostream/internal/model"
	"cryptostream/internal/metrics/rate"
	"cryptostream/logger"
)

// Fetcher downloads the raw order book snapshot of one symbol. The payload
// is what the exchange's REST endpoint returned, decodable by
// parser.ParseL2Snapshot.
type Fetcher interface {
	Exchange() string
	Fetch(ctx context.Context, marketType model.MarketType, symbol string, limit int) ([]byte, error)
}

// ConnectionPool sizes the HTTP transport of a fetcher.
type ConnectionPool struct {
	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
}

// Options configures a fetcher's HTTP client.
type Options struct {
	// BaseURL replaces the exchange's public REST host, e.g. for tests.
	BaseURL string
	Timeout time.Duration
	Pool    ConnectionPool
	// LocalIP binds outbound connections to a local address.
	LocalIP string
}

func newHTTPClient(opts Options) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        opts.Pool.MaxIdleConns,
		MaxIdleConnsPerHost: opts.Pool.MaxIdleConns,
		MaxConnsPerHost:     opts.Pool.MaxConnsPerHost,
		IdleConnTimeout:     opts.Pool.IdleConnTimeout,
		DisableCompression:  false,
	}
	if opts.LocalIP != "" {
		if ip := net.ParseIP(opts.LocalIP); ip != nil {
			dialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}
			transport.DialContext = dialer.DialContext
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// NewFetcher returns the fetcher of exchange.
func NewFetcher(exchange string, opts Options) (Fetcher, error) {
	switch strings.ToLower(exchange) {
	case "binance":
		return NewBinance(opts), nil
	case "bybit":
		return NewBybit(opts), nil
	case "okx":
		return NewOkx(opts), nil
	case "coinbasepro":
		return NewCoinbasePro(opts), nil
	default:
		return nil, model.Unsupported(exchange, "", "orderbook snapshot")
	}
}

// get performs a GET request and returns the body. Non-2xx responses are
// returned as errors with the body attached, since exchanges explain
// rejections there.
func get(ctx context.Context, client *http.Client, exchange, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.Transport(exchange, err)
	}
	defer resp.Body.Close()

	rate.ReportSnapshotWeight(logger.GetLogger(), exchange, resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.Transport(exchange, err)
	}
	if resp.StatusCode/100 != 2 {
		rate.ReportLimitFromMessage(logger.GetLogger(), exchange, "", "snapshot", string(body))
		return nil, model.Transport(exchange, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body))
	}
	return body, nil
}

func trimBase(base string) string {
	return strings.TrimRight(base, "/")
}
