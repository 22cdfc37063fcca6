// Package feed moves data frames from a session engine onto the raw channel.
package feed

import (
	"context"
	"sync/atomic"

	"cryptostream/internal/channel"
	"cryptostream/internal/model"
	"cryptostream/internal/session"
	"cryptostream/logger"
)

// Feed forwards the Messages of one engine, tagging each frame with the
// exchange and market type it came from.
type Feed struct {
	engine   *session.Engine
	channels *channel.Channels
	log      *logger.Entry
	stage    string

	forwarded atomic.Int64
	dropped   atomic.Int64
}

func New(engine *session.Engine, ch *channel.Channels) *Feed {
	a := engine.Adapter()
	return &Feed{
		engine:   engine,
		channels: ch,
		log:      logger.GetLogger().WithComponent("feed").WithExchange(a.Exchange(), string(a.MarketType())),
		stage:    "raw_" + a.Exchange(),
	}
}

// Run blocks until ctx is done or the engine closes its Messages channel.
func (f *Feed) Run(ctx context.Context) {
	a := f.engine.Adapter()
	f.log.Info("feed started")
	defer func() {
		f.log.WithFields(logger.Fields{
			"forwarded": f.forwarded.Load(),
			"dropped":   f.dropped.Load(),
		}).Info("feed stopped")
	}()

	messages := f.engine.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				if err := f.engine.Err(); err != nil {
					f.log.WithError(err).Error("session gave up")
				}
				return
			}
			raw := model.RawMessage{
				Exchange:     a.Exchange(),
				MarketType:   a.MarketType(),
				ConnectionID: msg.ConnectionID,
				ReceivedAt:   msg.ReceivedAt,
				Data:         msg.Data,
			}
			if !f.channels.SendRaw(ctx, raw) {
				if ctx.Err() != nil {
					return
				}
				f.dropped.Add(1)
				f.log.Debug("raw channel is full, dropping frame")
				continue
			}
			f.forwarded.Add(1)
			logger.RecordFlow(f.stage, len(msg.Data))
		}
	}
}

// Forwarded is the number of frames placed on the raw channel.
func (f *Feed) Forwarded() int64 { return f.forwarded.Load() }
