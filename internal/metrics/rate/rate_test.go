package rate

import (
	"net/http"
	"testing"

	"cryptostream/logger"
)

func TestReportRateLimitExceeded(t *testing.T) {
	log := logger.GetLogger()
	ReportRateLimitExceeded(log, "binance", "spot", "ws")
}

func TestReportIPBan(t *testing.T) {
	log := logger.GetLogger()
	ReportIPBan(log, "binance", "spot", "rest")
}

func TestDetectLimit(t *testing.T) {
	cases := []struct {
		exchange string
		msg      string
		rate     bool
		ban      bool
	}{
		{"binance", "Too many requests", true, false},
		{"okx", "IP has been blocked for 60 seconds", false, true},
		{"bybit", "IP rate limit reached", false, true},
		{"huobi", `{"status":"error","err-code":"too-many-request"}`, true, false},
		{"mexc", "Requests are too frequent", true, false},
		{"unknown", "hello world", false, false},
	}
	for _, c := range cases {
		rl, ban := detectLimit(c.exchange, c.msg)
		if rl != c.rate {
			t.Errorf("exchange %s: expected rateLimit %v got %v", c.exchange, c.rate, rl)
		}
		if ban != c.ban {
			t.Errorf("exchange %s: expected ipBan %v got %v", c.exchange, c.ban, ban)
		}
	}
}

func TestMiscHookIgnoresPlainAcks(t *testing.T) {
	hook := MiscHook(logger.GetLogger(), "okx", "spot")
	hook([]byte(`{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT"}}`))
	hook([]byte(`{"event":"error","msg":"Too Many Requests"}`))
}

func TestUsedWeight(t *testing.T) {
	cases := []struct {
		name     string
		exchange string
		headers  map[string]string
		want     int64
	}{
		{"binance", "binance", map[string]string{"X-MBX-USED-WEIGHT-1m": "42"}, 42},
		{"bybit legacy", "bybit", map[string]string{"X-Bapi-Limit": "120", "X-Bapi-Limit-Status": "100"}, 20},
		{"bybit ratelimit", "bybit", map[string]string{"X-RateLimit-Limit": "50", "X-RateLimit-Remaining": "60"}, 0},
		{"okx used", "okx", map[string]string{"Rate-Limit-Used": "7;w=2"}, 7},
		{"okx remaining", "okx", map[string]string{"Rate-Limit-Limit": "20;w=2", "Rate-Limit-Remaining": "15;w=2"}, 5},
		{"missing", "okx", nil, 0},
		{"okx without digits", "okx", map[string]string{"Rate-Limit-Used": "n/a", "Rate-Limit-Limit": "20;w=2", "Rate-Limit-Remaining": "18"}, 2},
		{"unknown", "huobi", map[string]string{"X-MBX-USED-WEIGHT-1m": "42"}, 0},
	}
	for _, c := range cases {
		h := http.Header{}
		for k, v := range c.headers {
			h.Set(k, v)
		}
		if got := UsedWeight(c.exchange, h); got != c.want {
			t.Errorf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}
