package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"cryptostream/internal/metrics"
	"cryptostream/internal/model"
	"cryptostream/internal/protocol"
	"cryptostream/internal/subscription"
	"cryptostream/logger"
)

var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("session closed")
	// ErrNotStarted is returned by subscription operations before Start.
	ErrNotStarted = errors.New("session not started")
	// ErrMaxAttempts is reported by Err when the engine gave up reconnecting.
	ErrMaxAttempts = errors.New("max connection attempts reached")
)

// State is the connection state of an Engine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Message is a data-plane frame delivered to the caller.
type Message struct {
	Data         []byte
	ReceivedAt   time.Time
	ConnectionID string
}

type opKind int

const (
	opSubscribe opKind = iota
	opUnsubscribe
	opList
)

type op struct {
	kind  opKind
	pairs []subscription.Pair
	reply chan opResult
}

type opResult struct {
	pairs []subscription.Pair
	err   error
}

type frame struct {
	messageType int
	data        []byte
	at          time.Time
}

// Engine keeps one exchange connection alive. A single goroutine owns the
// transport and the subscription set; callers reach it through the ops
// channel.
type Engine struct {
	adapter protocol.Adapter
	opts    options
	log     *logger.Entry
	limiter *rate.Limiter

	ops      chan op
	messages chan Message
	done     chan struct{}
	state    atomic.Int32

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	err     error
}

// New creates an engine for adapter. Call Start to connect.
func New(adapter protocol.Adapter, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		adapter:  adapter,
		opts:     o,
		ops:      make(chan op),
		messages: make(chan Message, o.bufferSize),
		done:     make(chan struct{}),
	}
	e.log = o.log.WithComponent("session").WithFields(logger.Fields{
		"exchange":    adapter.Exchange(),
		"market_type": string(adapter.MarketType()),
	})
	if cl, ok := adapter.(protocol.CommandLimiter); ok && cl.CommandsPerSecond() > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cl.CommandsPerSecond()), 1)
	}
	return e
}

// Start launches the connection loop. It returns immediately; connection
// progress is observable through State and the state hook.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return fmt.Errorf("session for %s already running", e.adapter.Exchange())
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)
	go e.run(ctx)
	return nil
}

// Close stops the engine, suppresses further reconnects and closes Messages.
// It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return nil
	}
	e.closed = true
	started, cancel := e.started, e.cancel
	e.mu.Unlock()

	if !started {
		e.setState(StateClosed)
		close(e.messages)
		close(e.done)
		return nil
	}
	cancel()
	<-e.done
	e.log.Info("session closed")
	return nil
}

// Messages delivers Normal frames in arrival order. It is closed when the
// engine stops.
func (e *Engine) Messages() <-chan Message { return e.messages }

// Done is closed once the engine has stopped.
func (e *Engine) Done() <-chan struct{} { return e.done }

// State returns the current connection state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Adapter returns the protocol adapter the engine was built with.
func (e *Engine) Adapter() protocol.Adapter { return e.adapter }

// Err reports why the engine stopped on its own, if it did.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Subscribe adds kind for symbols. The adapter must support kind on this
// market type, otherwise an ErrUnsupportedOperation error is returned and
// nothing changes.
func (e *Engine) Subscribe(ctx context.Context, kind model.MessageType, symbols []string) error {
	channel, err := e.adapter.Channel(kind)
	if err != nil {
		return err
	}
	return e.SubscribeChannel(ctx, subscription.Pairs(channel, symbols))
}

// Unsubscribe removes kind for symbols. Kinds sharing kind's exchange
// channel stop for those symbols as well.
func (e *Engine) Unsubscribe(ctx context.Context, kind model.MessageType, symbols []string) error {
	channel, err := e.adapter.Channel(kind)
	if err != nil {
		return err
	}
	return e.UnsubscribeChannel(ctx, subscription.Pairs(channel, symbols))
}

// SubscribeChannel adds raw (channel, symbol) pairs. When connected the
// commands are sent right away; otherwise they are replayed on connect.
func (e *Engine) SubscribeChannel(ctx context.Context, pairs []subscription.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	if err := subscription.Validate(pairs); err != nil {
		return err
	}
	_, err := e.submit(ctx, op{kind: opSubscribe, pairs: pairs})
	return err
}

// UnsubscribeChannel removes raw (channel, symbol) pairs.
func (e *Engine) UnsubscribeChannel(ctx context.Context, pairs []subscription.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	if err := subscription.Validate(pairs); err != nil {
		return err
	}
	_, err := e.submit(ctx, op{kind: opUnsubscribe, pairs: pairs})
	return err
}

// Subscriptions returns the current subscription set sorted by token.
func (e *Engine) Subscriptions(ctx context.Context) ([]subscription.Pair, error) {
	res, err := e.submit(ctx, op{kind: opList})
	return res.pairs, err
}

func (e *Engine) submit(ctx context.Context, o op) (opResult, error) {
	e.mu.Lock()
	started, closed := e.started, e.closed
	e.mu.Unlock()
	if closed {
		return opResult{}, ErrClosed
	}
	if !started {
		return opResult{}, ErrNotStarted
	}

	o.reply = make(chan opResult, 1)
	select {
	case e.ops <- o:
	case <-ctx.Done():
		return opResult{}, ctx.Err()
	case <-e.done:
		return opResult{}, ErrClosed
	}
	select {
	case r := <-o.reply:
		return r, r.err
	case <-ctx.Done():
		return opResult{}, ctx.Err()
	case <-e.done:
		select {
		case r := <-o.reply:
			return r, r.err
		default:
			return opResult{}, ErrClosed
		}
	}
}

func (e *Engine) setState(s State) {
	if State(e.state.Swap(int32(s))) == s {
		return
	}
	e.log.WithFields(logger.Fields{"state": s.String()}).Debug("session state changed")
	if e.opts.onStateChange != nil {
		e.opts.onStateChange(s)
	}
}

func (e *Engine) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *Engine) run(ctx context.Context) {
	defer func() {
		e.setState(StateClosed)
		close(e.messages)
		close(e.done)
	}()

	exchange, marketType := e.adapter.Exchange(), string(e.adapter.MarketType())
	set := subscription.NewSet()
	failures := 0
	var delay time.Duration

	e.setState(StateConnecting)
	for {
		if delay > 0 && !e.wait(ctx, set, delay) {
			return
		}

		conn, err := e.connect(ctx, set)
		if err == nil {
			if err = e.replay(ctx, conn, set); err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			e.log.WithError(err).WithFields(logger.Fields{"attempt": failures}).Warn("connection attempt failed")
			if e.opts.maxAttempts > 0 && failures >= e.opts.maxAttempts {
				e.setErr(fmt.Errorf("%w (%d): %v", ErrMaxAttempts, failures, err))
				e.log.WithError(err).Error("giving up on connection")
				return
			}
			e.setState(StateReconnecting)
			delay = e.opts.backoff.Next(failures)
			continue
		}

		failures = 0
		connID := uuid.NewString()
		e.setState(StateConnected)
		e.log.WithFields(logger.Fields{"connection_id": connID, "subscriptions": set.Len()}).Info("connected")

		err = e.serve(ctx, conn, set, connID)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		metrics.RecordReconnect(exchange, marketType)
		e.log.WithError(err).WithFields(logger.Fields{"connection_id": connID}).Warn("connection lost, reconnecting")
		e.setState(StateReconnecting)
		delay = e.opts.backoff.Next(1)
	}
}

// wait sleeps for d while still accepting subscription changes. It returns
// false when ctx is cancelled.
func (e *Engine) wait(ctx context.Context, set *subscription.Set, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case o := <-e.ops:
			e.applyOffline(set, o)
		}
	}
}

// connect dials in the background so subscription changes are not blocked
// by the handshake.
func (e *Engine) connect(ctx context.Context, set *subscription.Set) (Conn, error) {
	type result struct {
		conn Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := e.opts.dialer.Dial(ctx, e.adapter.URL())
		ch <- result{conn: conn, err: err}
	}()
	for {
		select {
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					_ = r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-ch:
			if r.err != nil {
				return nil, model.Transport(e.adapter.Exchange(), r.err)
			}
			return r.conn, nil
		case o := <-e.ops:
			e.applyOffline(set, o)
		}
	}
}

// replay sends the whole subscription set on a fresh connection.
func (e *Engine) replay(ctx context.Context, conn Conn, set *subscription.Set) error {
	if set.Len() == 0 {
		return nil
	}
	commands, err := e.adapter.RenderSubscribe(set.Pairs())
	if err != nil {
		return err
	}
	for _, cmd := range commands {
		if err := e.send(ctx, conn, cmd); err != nil {
			return err
		}
	}
	e.log.WithFields(logger.Fields{"subscriptions": set.Len(), "commands": len(commands)}).Info("subscriptions replayed")
	return nil
}

func (e *Engine) send(ctx context.Context, conn Conn, cmd string) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		return model.Transport(e.adapter.Exchange(), err)
	}
	e.log.WithFields(logger.Fields{"command": cmd}).Debug("command sent")
	return nil
}

// applyOffline records a change while no connection is up; the set is
// replayed in full on the next connect.
func (e *Engine) applyOffline(set *subscription.Set, o op) {
	switch o.kind {
	case opSubscribe:
		set.Add(o.pairs...)
	case opUnsubscribe:
		set.Remove(o.pairs...)
	}
	o.reply <- opResult{pairs: set.Pairs()}
}

// applyOnline updates the set and then sends the commands for the pairs that
// actually changed. A send failure is returned to trigger a reconnect; the
// set already holds the change so the replay covers it.
func (e *Engine) applyOnline(ctx context.Context, conn Conn, set *subscription.Set, o op) error {
	var (
		commands []string
		err      error
	)
	switch o.kind {
	case opSubscribe:
		if added := set.Add(o.pairs...); len(added) > 0 {
			commands, err = e.adapter.RenderSubscribe(added)
		}
	case opUnsubscribe:
		if removed := set.Remove(o.pairs...); len(removed) > 0 {
			commands, err = e.adapter.RenderUnsubscribe(removed)
		}
	}
	if err != nil {
		o.reply <- opResult{err: err}
		return nil
	}
	for _, cmd := range commands {
		if err := e.send(ctx, conn, cmd); err != nil {
			o.reply <- opResult{pairs: set.Pairs()}
			return err
		}
	}
	o.reply <- opResult{pairs: set.Pairs()}
	return nil
}

func (e *Engine) serve(ctx context.Context, conn Conn, set *subscription.Set, connID string) error {
	stop := make(chan struct{})
	defer close(stop)
	frames := make(chan frame)
	errc := make(chan error, 1)
	if e.opts.readTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(e.opts.readTimeout))
		})
	}
	go e.read(conn, frames, errc, stop)

	var (
		heartbeat <-chan time.Time
		ping      string
	)
	if hb, ok := e.adapter.(protocol.Heartbeater); ok {
		msg, interval := hb.Heartbeat()
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			heartbeat, ping = ticker.C, msg
		}
	} else if e.opts.readTimeout > 0 {
		ticker := time.NewTicker(e.opts.readTimeout / 3)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return model.Transport(e.adapter.Exchange(), err)
		case f := <-frames:
			if err := e.handle(ctx, conn, f, connID); err != nil {
				return err
			}
		case o := <-e.ops:
			if err := e.applyOnline(ctx, conn, set, o); err != nil {
				return err
			}
		case <-heartbeat:
			var err error
			if ping == "" {
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			} else {
				err = conn.WriteMessage(websocket.TextMessage, []byte(ping))
			}
			if err != nil {
				return model.Transport(e.adapter.Exchange(), err)
			}
		}
	}
}

// read owns the read side of conn. The deadline is pushed forward before
// every read and on every pong, so only a connection that stops answering
// surfaces as an error.
func (e *Engine) read(conn Conn, frames chan<- frame, errc chan<- error, stop <-chan struct{}) {
	for {
		if e.opts.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(e.opts.readTimeout))
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		select {
		case frames <- frame{messageType: mt, data: data, at: time.Now()}:
		case <-stop:
			return
		}
	}
}

func (e *Engine) handle(ctx context.Context, conn Conn, f frame, connID string) error {
	exchange, marketType := e.adapter.Exchange(), string(e.adapter.MarketType())
	data := f.data
	if dec, ok := e.adapter.(protocol.FrameDecoder); ok {
		decoded, err := dec.DecodeFrame(f.messageType, data)
		if err != nil {
			e.log.WithError(err).Debug("dropping undecodable frame")
			metrics.RecordFrame(exchange, marketType, protocol.Misc.String())
			return nil
		}
		data = decoded
	}
	if r, ok := e.adapter.(protocol.Responder); ok {
		if reply, ok := r.Respond(data); ok {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return model.Transport(exchange, err)
			}
		}
	}

	control := e.adapter.ClassifyControl(data)
	metrics.RecordFrame(exchange, marketType, control.String())
	if control == protocol.Misc {
		if e.opts.onMisc != nil {
			e.opts.onMisc(data)
		}
		return nil
	}

	select {
	case e.messages <- Message{Data: data, ReceivedAt: f.at, ConnectionID: connID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
