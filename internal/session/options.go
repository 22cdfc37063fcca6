package session

import (
	"time"

	"cryptostream/logger"
)

type options struct {
	dialer        Dialer
	backoff       Backoff
	maxAttempts   int
	readTimeout   time.Duration
	bufferSize    int
	onStateChange func(State)
	onMisc        func([]byte)
	log           *logger.Log
}

func defaultOptions() options {
	return options{
		dialer:      WSDialer{},
		backoff:     DefaultBackoff(),
		readTimeout: 60 * time.Second,
		bufferSize:  1024,
		log:         logger.GetLogger(),
	}
}

// Option configures an Engine.
type Option func(*options)

// WithDialer replaces the gorilla websocket dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithBackoff sets the reconnect delay policy.
func WithBackoff(b Backoff) Option {
	return func(o *options) { o.backoff = b }
}

// WithMaxAttempts bounds consecutive failed connection attempts. Zero keeps
// reconnecting forever.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxAttempts = n
		}
	}
}

// WithReadTimeout sets how long the connection may stay silent before it is
// considered stale. Zero disables the check.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.readTimeout = d
		}
	}
}

// WithBufferSize sets the capacity of the Messages channel.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.bufferSize = n
		}
	}
}

// WithStateHook registers fn to observe every state transition. It runs on
// the engine goroutine and must not block.
func WithStateHook(fn func(State)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// WithMiscHook registers fn to receive every control frame. It runs on the
// engine goroutine and must not block.
func WithMiscHook(fn func([]byte)) Option {
	return func(o *options) { o.onMisc = fn }
}

// WithLogger replaces the global logger.
func WithLogger(l *logger.Log) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
