// Package sink delivers canonical records to their destinations.
package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptostream/internal/channel"
	"cryptostream/internal/model"
	"cryptostream/logger"
)

// Sink writes a batch of records. Implementations must be safe for use by a
// single Runner goroutine; Close is called once after the last Write.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch Batch) error
	Close() error
}

// Batch is a group of records flushed together.
type Batch struct {
	ID      string
	Records []model.Record
}

// Runner drains the norm channel into one or more sinks, flushing when the
// batch is full or the flush interval elapsed.
type Runner struct {
	channels      *channel.Channels
	sinks         []Sink
	batchSize     int
	flushInterval time.Duration
	ctx           context.Context
	wg            *sync.WaitGroup
	mu            sync.RWMutex
	running       bool
	log           *logger.Log

	pending []model.Record
}

// NewRunner creates a runner. A non-positive batchSize flushes every record
// and a non-positive flushInterval defaults to one second.
func NewRunner(ch *channel.Channels, batchSize int, flushInterval time.Duration, sinks ...Sink) *Runner {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Runner{
		channels:      ch,
		sinks:         sinks,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		wg:            &sync.WaitGroup{},
		log:           logger.GetLogger(),
		pending:       make([]model.Record, 0, batchSize),
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("sink runner already running")
	}
	if len(r.sinks) == 0 {
		r.mu.Unlock()
		return fmt.Errorf("no sinks configured")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	names := make([]string, 0, len(r.sinks))
	for _, s := range r.sinks {
		names = append(names, s.Name())
	}
	r.log.WithComponent("sink_runner").WithFields(logger.Fields{
		"sinks":      names,
		"batch_size": r.batchSize,
	}).Info("starting sink runner")

	r.wg.Add(1)
	go r.run()
	return nil
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.flush(context.Background())
			return
		case rec, ok := <-r.channels.Norm:
			if !ok {
				r.flush(context.Background())
				return
			}
			r.pending = append(r.pending, rec)
			if len(r.pending) >= r.batchSize {
				r.flush(r.ctx)
			}
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// flush writes pending records to every sink. The final flush on shutdown
// uses a fresh context bounded by the flush interval.
func (r *Runner) flush(ctx context.Context) {
	if len(r.pending) == 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if r.ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.flushInterval)
		defer cancel()
	}

	batch := Batch{ID: uuid.New().String(), Records: r.pending}
	for _, s := range r.sinks {
		start := time.Now()
		log := r.log.WithComponent("sink_runner").WithFields(logger.Fields{
			"sink":     s.Name(),
			"batch_id": batch.ID,
			"records":  len(batch.Records),
		})
		if err := s.Write(ctx, batch); err != nil {
			log.WithError(err).Warn("failed to write batch")
			continue
		}
		logger.LogPerformanceEntry(log, "sink_runner", "write_batch", time.Since(start), nil)
		logger.LogDataFlowEntry(log, "norm_channel", s.Name(), len(batch.Records), "records")
	}
	r.pending = make([]model.Record, 0, r.batchSize)
}

// Stop waits for the final flush and closes the sinks. The Start context
// must be cancelled or the norm channel closed first.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.wg.Wait()
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.log.WithComponent("sink_runner").WithError(err).WithFields(logger.Fields{"sink": s.Name()}).Warn("failed to close sink")
		}
	}
	r.log.WithComponent("sink_runner").Info("sink runner stopped")
}
