package sink

import (
	"context"

	"cryptostream/internal/model"
	"cryptostream/logger"
)

// Log writes every record as a structured log line. It is the default sink
// when Kafka is not configured.
type Log struct {
	log *logger.Log
}

func NewLog(log *logger.Log) *Log {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Log{log: log}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Write(ctx context.Context, batch Batch) error {
	for _, rec := range batch.Records {
		l.log.WithComponent("log_sink").WithFields(Fields(rec)).WithFields(logger.Fields{
			"batch_id": batch.ID,
		}).Info(string(rec.Kind()))
	}
	return nil
}

func (l *Log) Close() error { return nil }

// Fields flattens the identifying and headline values of rec for logging.
func Fields(rec model.Record) logger.Fields {
	f := logger.Fields{"key": rec.Key(), "kind": string(rec.Kind())}
	switch r := rec.(type) {
	case model.Trade:
		f["side"] = string(r.Side)
		f["price"] = r.Price
		f["quantity_base"] = r.QuantityBase
		f["trade_id"] = r.TradeID
		f["event_time"] = r.Timestamp
	case model.OrderBook:
		f["snapshot"] = r.Snapshot
		f["asks"] = len(r.Asks)
		f["bids"] = len(r.Bids)
		f["event_time"] = r.Timestamp
		if r.SeqID != nil {
			f["seq_id"] = *r.SeqID
		}
	case model.BBO:
		f["bid_price"] = r.BidPrice
		f["ask_price"] = r.AskPrice
		f["event_time"] = r.Timestamp
	case model.Ticker:
		f["close"] = r.Close
		f["volume"] = r.Volume
		f["event_time"] = r.Timestamp
	case model.FundingRate:
		f["funding_rate"] = r.FundingRate
		f["funding_time"] = r.FundingTime
		f["event_time"] = r.Timestamp
	}
	return f
}
