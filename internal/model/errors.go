package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage marks a frame that does not match the exchange's
	// minimal envelope.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnsupportedOperation marks a market type and operation combination
	// the exchange does not offer.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrParse marks a well-formed message that fails canonical decoding.
	ErrParse = errors.New("parse error")
	// ErrTransport marks a connection level failure.
	ErrTransport = errors.New("transport error")
)

// Malformed wraps ErrMalformedMessage.
func Malformed(exchange, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedMessage, exchange, fmt.Sprintf(format, args...))
}

// Unsupported wraps ErrUnsupportedOperation naming the exchange, market type
// and operation.
func Unsupported(exchange string, marketType MarketType, operation string) error {
	return fmt.Errorf("%w: %s %s does not support %s", ErrUnsupportedOperation, exchange, marketType, operation)
}

// ParseFailure wraps ErrParse.
func ParseFailure(exchange, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrParse, exchange, fmt.Sprintf(format, args...))
}

// Transport wraps ErrTransport around a connection error.
func Transport(exchange string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, exchange, err)
}
