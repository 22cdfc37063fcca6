package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"cryptostream/internal/model"
	"cryptostream/logger"
)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	// RequiredAcks is "none", "one" or "all".
	RequiredAcks string
	// Compression is "", "gzip", "snappy", "lz4" or "zstd".
	Compression string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every record as one message keyed by Record.Key, so all
// records of a stream land in the same partition in order.
type Kafka struct {
	writer messageWriter
	topic  string
	log    *logger.Log
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	acks, err := requiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: acks,
	}
	switch strings.ToLower(cfg.Compression) {
	case "":
	case "gzip":
		w.Compression = kafka.Gzip
	case "snappy":
		w.Compression = kafka.Snappy
	case "lz4":
		w.Compression = kafka.Lz4
	case "zstd":
		w.Compression = kafka.Zstd
	default:
		return nil, fmt.Errorf("unknown kafka compression %q", cfg.Compression)
	}

	k := &Kafka{writer: w, topic: cfg.Topic, log: logger.GetLogger()}
	k.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka sink initialized")
	return k, nil
}

func requiredAcks(s string) (kafka.RequiredAcks, error) {
	switch strings.ToLower(s) {
	case "", "one":
		return kafka.RequireOne, nil
	case "none":
		return kafka.RequireNone, nil
	case "all":
		return kafka.RequireAll, nil
	default:
		return 0, fmt.Errorf("unknown kafka required_acks %q", s)
	}
}

func (k *Kafka) Name() string { return "kafka" }

// Message encodes rec as a Kafka message. The value is the record's JSON and
// headers carry the record kind and the batch id.
func Message(rec model.Record, batchID string) (kafka.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s record: %w", rec.Kind(), err)
	}
	return kafka.Message{
		Key:   []byte(rec.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(rec.Kind())},
			{Key: "batch_id", Value: []byte(batchID)},
		},
	}, nil
}

func (k *Kafka) Write(ctx context.Context, batch Batch) error {
	msgs := make([]kafka.Message, 0, len(batch.Records))
	for _, rec := range batch.Records {
		msg, err := Message(rec, batch.ID)
		if err != nil {
			k.log.WithComponent("kafka_sink").WithError(err).Warn("skipping record")
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d messages to %s: %w", len(msgs), k.topic, err)
	}
	logger.RecordFlow("kafka_"+k.topic, len(msgs))
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }
