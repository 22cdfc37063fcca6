package snapshot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cryptostream/internal/channel"
	"cryptostream/internal/metrics"
	"cryptostream/internal/model"
	"cryptostream/internal/parser"
	"cryptostream/logger"
)

// Target is a set of symbols of one market type polled at the same pace.
type Target struct {
	MarketType model.MarketType
	Symbols    []string
	Interval   time.Duration
	Limit      int
}

// Poller periodically fetches snapshots for its targets, decodes them and
// sends the books to the norm channel.
type Poller struct {
	fetcher  Fetcher
	channels *channel.Channels
	targets  []Target
	limiter  *rate.Limiter
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	emitted atomic.Int64
	failed  atomic.Int64
}

// NewPoller creates a poller. rps and burst bound the request rate across
// all of its symbols; non-positive values default to 5 and 1.
func NewPoller(fetcher Fetcher, ch *channel.Channels, targets []Target, rps float64, burst int) *Poller {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &Poller{
		fetcher:  fetcher,
		channels: ch,
		targets:  targets,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches one worker per symbol. Each worker fetches immediately and
// then on interval boundaries.
func (p *Poller) Start(ctx context.Context) error {
	for _, t := range p.targets {
		if t.Interval <= 0 {
			return fmt.Errorf("snapshot interval for %s %s must be positive", p.fetcher.Exchange(), t.MarketType)
		}
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	log := p.log.WithComponent("snapshot_poller").WithFields(logger.Fields{
		"exchange":  p.fetcher.Exchange(),
		"operation": "start",
	})
	for _, t := range p.targets {
		log.WithFields(logger.Fields{
			"market_type": string(t.MarketType),
			"symbols":     t.Symbols,
			"interval_ms": t.Interval.Milliseconds(),
		}).Info("starting snapshot workers")
		for _, symbol := range t.Symbols {
			p.wg.Add(1)
			go p.worker(t, symbol)
		}
	}
	return nil
}

// Stop waits for the workers, which exit once the Start context is done.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.log.WithComponent("snapshot_poller").WithFields(logger.Fields{
		"exchange": p.fetcher.Exchange(),
		"emitted":  p.emitted.Load(),
		"failed":   p.failed.Load(),
	}).Info("snapshot poller stopped")
}

// Emitted is the number of books sent to the norm channel.
func (p *Poller) Emitted() int64 { return p.emitted.Load() }

func (p *Poller) worker(t Target, symbol string) {
	defer p.wg.Done()

	log := p.log.WithComponent("snapshot_poller").WithFields(logger.Fields{
		"exchange": p.fetcher.Exchange(),
		"symbol":   symbol,
		"worker":   "orderbook_fetcher",
	})

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			log.Debug("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			p.poll(t, symbol)
			if d := time.Since(start); d > t.Interval {
				log.WithFields(logger.Fields{
					"duration": d.Milliseconds(),
					"interval": t.Interval.Milliseconds(),
				}).Warn("fetch took longer than interval")
			}
			timer.Reset(time.Until(start.Truncate(t.Interval).Add(t.Interval)))
		}
	}
}

func (p *Poller) poll(t Target, symbol string) {
	exchange := p.fetcher.Exchange()
	log := p.log.WithComponent("snapshot_poller").WithFields(logger.Fields{
		"exchange":    exchange,
		"market_type": string(t.MarketType),
		"symbol":      symbol,
		"request_id":  uuid.NewString(),
	})

	if err := p.limiter.Wait(p.ctx); err != nil {
		return
	}

	start := time.Now()
	raw, err := p.fetcher.Fetch(p.ctx, t.MarketType, symbol, t.Limit)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.failed.Add(1)
		metrics.RecordSnapshot(exchange, symbol, err)
		log.WithError(err).Warn("failed to fetch orderbook")
		return
	}
	logger.LogPerformanceEntry(log, "snapshot_poller", "api_request", time.Since(start), nil)

	ts := time.Now().UnixMilli()
	books, err := parser.ParseL2Snapshot(exchange, t.MarketType, symbol, raw, &ts)
	metrics.RecordSnapshot(exchange, symbol, err)
	if err != nil {
		p.failed.Add(1)
		log.WithError(err).Warn("failed to decode orderbook")
		return
	}

	for _, ob := range books {
		if !p.channels.SendNorm(p.ctx, ob) {
			if p.ctx.Err() != nil {
				return
			}
			log.Warn("norm channel is full, dropping snapshot")
			continue
		}
		p.emitted.Add(1)
		logger.LogDataFlowEntry(log, exchange+"_api", "norm_channel", len(ob.Asks)+len(ob.Bids), "orderbook_levels")
		logger.RecordFlow("snapshot_"+exchange, len(raw))
	}
}
