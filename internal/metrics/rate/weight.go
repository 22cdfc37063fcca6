package rate

import (
	"net/http"
	"strconv"
	"strings"

	"cryptostream/internal/metrics"
	"cryptostream/logger"
)

// UsedWeight extracts the REST weight consumed so far from the exchange's
// rate limit headers. Unknown exchanges and missing headers yield zero.
func UsedWeight(exchange string, header http.Header) int64 {
	switch strings.ToLower(exchange) {
	case "binance":
		for _, name := range []string{"X-MBX-USED-WEIGHT-1m", "X-MBX-USED-WEIGHT"} {
			if v := header.Get(name); v != "" {
				used, _ := strconv.ParseInt(v, 10, 64)
				return used
			}
		}
		return 0
	case "bybit":
		limit := firstInt(header, "X-Bapi-Limit", "X-RateLimit-Limit")
		remaining := firstInt(header, "X-Bapi-Limit-Status", "X-RateLimit-Remaining")
		return clamp(limit - remaining)
	case "okx":
		if used := firstInt(header, "Rate-Limit-Used", "X-RateLimit-Used"); used > 0 {
			return used
		}
		limit := firstInt(header, "Rate-Limit-Limit", "X-RateLimit-Limit")
		remaining := firstInt(header, "Rate-Limit-Remaining", "X-RateLimit-Remaining")
		if limit == 0 {
			return 0
		}
		return clamp(limit - remaining)
	default:
		return 0
	}
}

// firstInt returns the quota value of the first present header.
func firstInt(header http.Header, names ...string) int64 {
	for _, name := range names {
		if n, ok := quotaValue(header.Get(name)); ok {
			return n
		}
	}
	return 0
}

// quotaValue reads the leading number of a rate limit header; okx appends
// attributes, as in "20;w=2".
func quotaValue(v string) (int64, bool) {
	digits := strings.FieldsFunc(v, func(r rune) bool { return r < '0' || r > '9' })
	for _, d := range digits {
		if n, err := strconv.ParseInt(d, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// ReportSnapshotWeight publishes the REST weight used by a snapshot request.
func ReportSnapshotWeight(log *logger.Log, exchange string, header http.Header) int64 {
	used := UsedWeight(exchange, header)
	metrics.SetUsedWeight(exchange, used)
	component := strings.ToLower(exchange) + "_snapshot"
	log.WithComponent(component).LogMetric(component, "used_weight", used, "gauge", logger.Fields{"exchange": exchange})
	return used
}
