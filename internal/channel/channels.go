package channel

import (
	"context"
	"sync"
	"time"

	"cryptostream/internal/metrics"
	"cryptostream/internal/model"
	"cryptostream/logger"
)

type Stats struct {
	RawSent     int64
	NormSent    int64
	RawDropped  int64
	NormDropped int64
}

// Channels carries raw frames from the feeds to the normalizer and canonical
// records from the normalizer to the sinks.
type Channels struct {
	Raw  chan model.RawMessage
	Norm chan model.Record

	// DropWhenFull makes sends fail immediately on a full buffer instead of
	// applying backpressure.
	DropWhenFull bool

	stats      Stats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

func NewChannels(rawBufferSize, normBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw:  make(chan model.RawMessage, rawBufferSize),
		Norm: make(chan model.Record, normBufferSize),
		log:  log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size":  rawBufferSize,
		"norm_buffer_size": normBufferSize,
	}).Info("channels initialized")

	return c
}

// Close closes both channels. Producers must have stopped.
func (c *Channels) Close() {
	c.closeOnce.Do(func() {
		close(c.Raw)
		close(c.Norm)
		c.log.WithComponent("channels").Info("channels closed")
	})
}

// SendRaw forwards msg to the normalizer. It reports false when ctx is done
// or the message was dropped.
func (c *Channels) SendRaw(ctx context.Context, msg model.RawMessage) bool {
	if c.DropWhenFull {
		select {
		case c.Raw <- msg:
		case <-ctx.Done():
			return false
		default:
			c.count(func(s *Stats) { s.RawDropped++ })
			metrics.RecordDrop("raw")
			return false
		}
	} else {
		select {
		case c.Raw <- msg:
		case <-ctx.Done():
			return false
		}
	}
	c.count(func(s *Stats) { s.RawSent++ })
	return true
}

// SendNorm forwards a canonical record to the sinks.
func (c *Channels) SendNorm(ctx context.Context, rec model.Record) bool {
	if c.DropWhenFull {
		select {
		case c.Norm <- rec:
		case <-ctx.Done():
			return false
		default:
			c.count(func(s *Stats) { s.NormDropped++ })
			metrics.RecordDrop("norm")
			return false
		}
	} else {
		select {
		case c.Norm <- rec:
		case <-ctx.Done():
			return false
		}
	}
	c.count(func(s *Stats) { s.NormSent++ })
	return true
}

func (c *Channels) count(fn func(*Stats)) {
	c.statsMutex.Lock()
	fn(&c.stats)
	c.statsMutex.Unlock()
}

func (c *Channels) GetStats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartSizeReporter publishes buffer occupancy every interval until ctx is
// cancelled. A non-positive interval defaults to one second.
func (c *Channels) StartSizeReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetChannelLen("raw", len(c.Raw))
				metrics.SetChannelLen("norm", len(c.Norm))
				stats := c.GetStats()
				c.log.WithComponent("channels").WithFields(logger.Fields{
					"raw_len":      len(c.Raw),
					"raw_cap":      cap(c.Raw),
					"norm_len":     len(c.Norm),
					"norm_cap":     cap(c.Norm),
					"raw_dropped":  stats.RawDropped,
					"norm_dropped": stats.NormDropped,
				}).Debug("channel sizes")
			}
		}
	}()
}
