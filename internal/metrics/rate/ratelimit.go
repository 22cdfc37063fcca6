package rate

import (
	"fmt"
	"strings"

	"cryptostream/logger"
)

// ReportRateLimitExceeded logs and emits a rate_limit_exceeded metric for the
// given exchange and market type.
func ReportRateLimitExceeded(log *logger.Log, exchange, marketType, source string) {
	l, component, fields := limitEntry(log, exchange, marketType, source)
	l.LogMetric(component, "rate_limit_exceeded", int64(1), "counter", fields)
	l.WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan logs and emits an ip_ban metric for the given exchange and
// market type.
func ReportIPBan(log *logger.Log, exchange, marketType, source string) {
	l, component, fields := limitEntry(log, exchange, marketType, source)
	l.LogMetric(component, "ip_ban", int64(1), "counter", fields)
	l.WithFields(fields).Error("ip banned")
}

func limitEntry(log *logger.Log, exchange, marketType, source string) (*logger.Entry, string, logger.Fields) {
	component := fmt.Sprintf("%s_%s", strings.ToLower(exchange), strings.ToLower(source))
	fields := logger.Fields{
		"exchange":    strings.ToLower(exchange),
		"market_type": marketType,
		"source":      strings.ToLower(source),
	}
	return log.WithComponent(component), component, fields
}

// detectLimit inspects a message returned by an exchange and reports whether
// it signals a rate limit or an IP ban. Every exchange words these
// differently.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(exchange) {
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "okx":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "frequency limit")
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "blocked") || strings.Contains(lowerMsg, "ban"))
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "too many visits"))
	case "huobi":
		rateLimit = strings.Contains(lowerMsg, "too-many-request") || strings.Contains(lowerMsg, "too many request") || strings.Contains(lowerMsg, "rate limit")
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "forbidden") || strings.Contains(lowerMsg, "ban"))
	case "mexc":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "frequent")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// ReportLimitFromMessage records rate limit and IP ban events found in msg.
// Messages matching neither pattern are ignored.
func ReportLimitFromMessage(log *logger.Log, exchange, marketType, source, msg string) {
	rateLimit, ipBan := detectLimit(exchange, msg)
	if rateLimit {
		ReportRateLimitExceeded(log, exchange, marketType, source)
	}
	if ipBan {
		ReportIPBan(log, exchange, marketType, source)
	}
}

// MiscHook returns a function suitable for a session misc hook: every
// control frame is scanned for limit notices.
func MiscHook(log *logger.Log, exchange, marketType string) func([]byte) {
	return func(raw []byte) {
		ReportLimitFromMessage(log, exchange, marketType, "ws", string(raw))
	}
}
