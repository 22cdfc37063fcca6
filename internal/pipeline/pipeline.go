// Package pipeline turns raw frames into canonical records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cryptostream/internal/catalog"
	"cryptostream/internal/channel"
	"cryptostream/internal/metrics"
	"cryptostream/internal/model"
	"cryptostream/internal/parser"
	"cryptostream/logger"
)

// Stats counts what the normalizer did with the frames it consumed.
type Stats struct {
	Frames   int64
	Records  int64
	Skipped  int64
	Errors   int64
	Filtered int64
	Dropped  int64
}

// Normalizer reads raw frames from the channels, classifies and parses them
// and sends the resulting records to the norm channel.
type Normalizer struct {
	channels *channel.Channels
	catalog  *catalog.Catalog
	workers  int
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	symbols       map[string]struct{}
	filterSymbols bool

	frames, records, skipped, errs, filtered, dropped atomic.Int64
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithWorkers sets the number of parsing goroutines.
func WithWorkers(n int) Option {
	return func(p *Normalizer) { p.workers = n }
}

// WithCatalog fills unified pairs from cat.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(p *Normalizer) { p.catalog = cat }
}

// WithSymbols restricts the output to the given native symbols. Frames of
// other symbols are dropped after classification.
func WithSymbols(symbols []string) Option {
	return func(p *Normalizer) {
		for _, s := range symbols {
			p.symbols[strings.ToUpper(s)] = struct{}{}
		}
		p.filterSymbols = len(p.symbols) > 0
	}
}

// New creates a normalizer over ch.
func New(ch *channel.Channels, opts ...Option) *Normalizer {
	p := &Normalizer{
		channels: ch,
		workers:  1,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		symbols:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Start launches the workers. They run until ctx is done or the raw channel
// is closed.
func (p *Normalizer) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("normalizer already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	log := p.log.WithComponent("normalizer").WithFields(logger.Fields{"operation": "start", "workers": p.workers})
	log.Info("starting normalizer")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return nil
}

// Stop waits for the workers to finish. The context passed to Start must be
// cancelled or the raw channel closed first.
func (p *Normalizer) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	s := p.Stats()
	p.log.WithComponent("normalizer").WithFields(logger.Fields{
		"frames":   s.Frames,
		"records":  s.Records,
		"skipped":  s.Skipped,
		"errors":   s.Errors,
		"filtered": s.Filtered,
		"dropped":  s.Dropped,
	}).Info("normalizer stopped")
}

// Stats returns the counters accumulated since New.
func (p *Normalizer) Stats() Stats {
	return Stats{
		Frames:   p.frames.Load(),
		Records:  p.records.Load(),
		Skipped:  p.skipped.Load(),
		Errors:   p.errs.Load(),
		Filtered: p.filtered.Load(),
		Dropped:  p.dropped.Load(),
	}
}

func (p *Normalizer) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case raw, ok := <-p.channels.Raw:
			if !ok {
				return
			}
			p.handleMessage(raw)
		}
	}
}

func (p *Normalizer) handleMessage(raw model.RawMessage) {
	p.frames.Add(1)
	log := p.log.WithComponent("normalizer").WithExchange(raw.Exchange, string(raw.MarketType))

	kind, symbol, err := parser.Classify(raw.Exchange, raw.MarketType, raw.Data)
	if err != nil {
		p.fail(log, raw, kind, err)
		return
	}
	// Candlesticks have no canonical record.
	if kind == model.MessageTypeOther || kind == model.MessageTypeCandlestick {
		p.skipped.Add(1)
		log.WithFields(logger.Fields{"connection_id": raw.ConnectionID, "kind": string(kind)}).Debug("skipping non-data frame")
		return
	}
	if p.filterSymbols {
		if _, ok := p.symbols[strings.ToUpper(symbol)]; !ok {
			p.filtered.Add(1)
			return
		}
	}

	recv := raw.ReceivedAt.UnixMilli()
	if raw.ReceivedAt.IsZero() {
		recv = time.Now().UnixMilli()
	}
	records, err := parser.ParseAll(raw.Exchange, raw.MarketType, kind, raw.Data, &recv)
	if err != nil {
		p.fail(log.WithFields(logger.Fields{"symbol": symbol}), raw, kind, err)
		return
	}

	for _, rec := range records {
		rec = p.enrich(rec, recv)
		if !p.channels.SendNorm(p.ctx, rec) {
			if p.ctx.Err() != nil {
				return
			}
			p.dropped.Add(1)
			continue
		}
		p.records.Add(1)
		metrics.RecordRecord(raw.Exchange, string(rec.Kind()))
		logger.RecordFlow("norm_"+string(rec.Kind()), 1)
	}
}

func (p *Normalizer) fail(log *logger.Entry, raw model.RawMessage, kind model.MessageType, err error) {
	p.errs.Add(1)
	reason := Reason(err)
	if kind == "" {
		kind = model.MessageTypeOther
	}
	metrics.RecordError(raw.Exchange, string(kind), reason)
	log = log.WithError(err).WithFields(logger.Fields{"reason": reason, "kind": string(kind)})
	if reason == "malformed" {
		log.Debug("dropping malformed frame")
		return
	}
	log.Warn("failed to normalize frame")
}

// Reason maps a parser error to the label used in metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, model.ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, model.ErrUnsupportedOperation):
		return "unsupported"
	default:
		return "parse"
	}
}

// enrich stamps trades with the receipt time and fills empty pairs from the
// catalog.
func (p *Normalizer) enrich(rec model.Record, recv int64) model.Record {
	switch r := rec.(type) {
	case model.Trade:
		r.ReceivedAt = recv
		if r.Pair == "" {
			r.Pair = p.catalog.Pair(r.Exchange, r.MarketType, r.Symbol)
		}
		return r
	case model.OrderBook:
		if r.Pair == "" {
			r.Pair = p.catalog.Pair(r.Exchange, r.MarketType, r.Symbol)
		}
		return r
	case model.BBO:
		if r.Pair == "" {
			r.Pair = p.catalog.Pair(r.Exchange, r.MarketType, r.Symbol)
		}
		return r
	case model.Ticker:
		if r.Pair == "" {
			r.Pair = p.catalog.Pair(r.Exchange, r.MarketType, r.Symbol)
		}
		return r
	case model.FundingRate:
		if r.Pair == "" {
			r.Pair = p.catalog.Pair(r.Exchange, r.MarketType, r.Symbol)
		}
		return r
	}
	return rec
}
