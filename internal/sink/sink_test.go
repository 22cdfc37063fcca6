package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"cryptostream/internal/channel"
	"cryptostream/internal/model"
	"cryptostream/logger"
)

func trade(id string) model.Trade {
	return model.Trade{
		Exchange:      "okx",
		MarketType:    model.MarketTypeSpot,
		Symbol:        "BTC-USDT",
		Pair:          "BTC/USDT",
		Side:          model.SideBuy,
		Price:         100,
		QuantityBase:  2,
		QuantityQuote: 200,
		TradeID:       id,
		Timestamp:     1629386781174,
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	batches []Batch
	closed  bool
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Write(ctx context.Context, batch Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b.Records)
	}
	return n
}

func TestMessage(t *testing.T) {
	msg, err := Message(trade("1"), "batch-1")
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if string(msg.Key) != "okx.spot.BTC-USDT" {
		t.Errorf("unexpected key %s", msg.Key)
	}
	var decoded model.Trade
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TradeID != "1" || decoded.Price != 100 || decoded.Side != model.SideBuy {
		t.Errorf("unexpected value %+v", decoded)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != "trade" || string(msg.Headers[1].Value) != "batch-1" {
		t.Errorf("unexpected headers %+v", msg.Headers)
	}
}

func TestKafkaWrite(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{writer: w, topic: "market-data", log: logger.Logger()}
	batch := Batch{ID: "b", Records: []model.Record{trade("1"), trade("2")}}
	if err := k.Write(context.Background(), batch); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	w.err = errors.New("broker down")
	if err := k.Write(context.Background(), batch); err == nil || !strings.Contains(err.Error(), "market-data") {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Errorf("close: %v %v", err, w.closed)
	}
}

func TestNewKafkaValidation(t *testing.T) {
	cases := []KafkaConfig{
		{Topic: "t"},
		{Brokers: []string{"localhost:9092"}},
		{Brokers: []string{"localhost:9092"}, Topic: "t", RequiredAcks: "some"},
		{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "brotli"},
	}
	for _, c := range cases {
		if _, err := NewKafka(c); err == nil {
			t.Errorf("%+v: expected error", c)
		}
	}
	k, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", RequiredAcks: "all", Compression: "zstd"})
	if err != nil {
		t.Fatalf("NewKafka: %v", err)
	}
	_ = k.Close()
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Logger()
	log.SetOutput(&buf)
	s := NewLog(log)
	if err := s.Write(context.Background(), Batch{ID: "b1", Records: []model.Record{trade("7")}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v %s", err, buf.String())
	}
	if line["key"] != "okx.spot.BTC-USDT" || line["trade_id"] != "7" || line["batch_id"] != "b1" || line["message"] != "trade" {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestRunnerFlushesOnSizeAndShutdown(t *testing.T) {
	ch := channel.NewChannels(1, 8)
	rs := &recordingSink{}
	r := NewRunner(ch, 2, time.Hour, rs)
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ch.Norm <- trade("1")
	ch.Norm <- trade("2")
	ch.Norm <- trade("3")

	deadline := time.Now().Add(2 * time.Second)
	for rs.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rs.count() < 2 {
		t.Fatal("full batch was not flushed")
	}
	// Give the runner a chance to pick up the third record.
	for len(ch.Norm) > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	r.Stop()

	if rs.count() != 3 || !rs.closed {
		t.Errorf("expected 3 records and a closed sink, got %d %v", rs.count(), rs.closed)
	}
	if rs.batches[0].ID == "" || rs.batches[0].ID == rs.batches[1].ID {
		t.Errorf("batches need distinct ids: %+v", rs.batches)
	}
}

func TestRunnerNeedsSinks(t *testing.T) {
	r := NewRunner(channel.NewChannels(1, 1), 1, time.Second)
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error without sinks")
	}
}
