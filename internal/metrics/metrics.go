// Registers:
//
//	#cryptostream_frames_total{exchange,market_type,class}
//	#cryptostream_reconnects_total{exchange,market_type}
//	#cryptostream_records_total{exchange,kind}
//	#cryptostream_errors_total{exchange,kind,reason}
//	#cryptostream_dropped_total{stage}
//	#cryptostream_snapshot_success_total / _errors_total{exchange,symbol}
//	#cryptostream_used_weight{exchange}
//	#cryptostream_channel_len{channel}
//	#go_* and process_* system metrics
//
// Exposes them on addr (default :2112) under /metrics.
package metrics

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptostream/logger"
)

// DefaultAddr is used by Init when no address is configured.
const DefaultAddr = "0.0.0.0:2112"

var (
	once            sync.Once
	registry        *prometheus.Registry
	frames          *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	records         *prometheus.CounterVec
	parseErrors     *prometheus.CounterVec
	drops           *prometheus.CounterVec
	snapshotSuccess *prometheus.CounterVec
	snapshotErrors  *prometheus.CounterVec
	usedWeight      *prometheus.GaugeVec
	channelLen      *prometheus.GaugeVec
)

// Register creates and registers the collectors. It is safe to call more
// than once; only the first call has an effect. Until it runs every Record
// helper is a no-op.
func Register() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		frames = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_frames_total",
			Help: "Frames received per exchange, split into normal and misc",
		}, []string{"exchange", "market_type", "class"})
		reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_reconnects_total",
			Help: "Connections lost and re-established",
		}, []string{"exchange", "market_type"})
		records = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_records_total",
			Help: "Canonical records produced",
		}, []string{"exchange", "kind"})
		parseErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_errors_total",
			Help: "Messages that failed classification or parsing",
		}, []string{"exchange", "kind", "reason"})
		drops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_dropped_total",
			Help: "Messages dropped because a buffer was full",
		}, []string{"stage"})
		snapshotSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_snapshot_success_total",
			Help: "Successful REST order book snapshots",
		}, []string{"exchange", "symbol"})
		snapshotErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptostream_snapshot_errors_total",
			Help: "Failed REST order book snapshots",
		}, []string{"exchange", "symbol"})
		usedWeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptostream_used_weight",
			Help: "REST rate limit weight reported by the exchange",
		}, []string{"exchange"})
		channelLen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptostream_channel_len",
			Help: "Occupancy of internal buffers",
		}, []string{"channel"})

		registry.MustRegister(frames, reconnects, records, parseErrors, drops,
			snapshotSuccess, snapshotErrors, usedWeight, channelLen,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Init registers the collectors and serves them on addr.
func Init(addr string) {
	reg := Register()
	if addr == "" {
		addr = DefaultAddr
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log := logger.GetLogger().WithComponent("metrics")
		log.WithFields(logger.Fields{"addr": addr}).Info("serving prometheus metrics")
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}

func RecordFrame(exchange, marketType, class string) {
	if frames != nil {
		frames.WithLabelValues(exchange, marketType, class).Inc()
	}
}

func RecordReconnect(exchange, marketType string) {
	if reconnects != nil {
		reconnects.WithLabelValues(exchange, marketType).Inc()
	}
}

func RecordRecord(exchange, kind string) {
	if records != nil {
		records.WithLabelValues(exchange, kind).Inc()
	}
}

// RecordError counts a message that could not be normalized. reason is one of
// malformed, unsupported or parse.
func RecordError(exchange, kind, reason string) {
	if parseErrors != nil {
		parseErrors.WithLabelValues(exchange, kind, reason).Inc()
	}
}

func RecordDrop(stage string) {
	if drops != nil {
		drops.WithLabelValues(stage).Inc()
	}
}

// RecordSnapshot counts a snapshot fetch outcome.
func RecordSnapshot(exchange, symbol string, err error) {
	vec := snapshotSuccess
	if err != nil {
		vec = snapshotErrors
	}
	if vec != nil {
		vec.WithLabelValues(exchange, symbol).Inc()
	}
}

func SetUsedWeight(exchange string, weight int64) {
	if usedWeight != nil {
		usedWeight.WithLabelValues(exchange).Set(float64(weight))
	}
}

func SetChannelLen(channel string, n int) {
	if channelLen != nil {
		channelLen.WithLabelValues(channel).Set(float64(n))
	}
}
