package decode

import (
	"time"

	"cryptostream/internal/model"
)

// Unit is the resolution an exchange uses for a timestamp field. It is fixed
// per field when the parser is written, never guessed from magnitude.
type Unit int

const (
	Seconds Unit = iota
	Milliseconds
	Microseconds
	Nanoseconds
)

// Millis converts v in unit to epoch milliseconds.
func Millis(v int64, unit Unit) int64 {
	switch unit {
	case Seconds:
		return v * 1000
	case Microseconds:
		return v / 1000
	case Nanoseconds:
		return v / 1_000_000
	default:
		return v
	}
}

// RFC3339Millis parses an RFC 3339 timestamp with optional fractional
// seconds.
func RFC3339Millis(exchange, field, s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, model.ParseFailure(exchange, "%s %q: %v", field, s, err)
	}
	return t.UnixMilli(), nil
}

// Timestamp picks the wire timestamp when present and falls back to the
// caller supplied one. With neither it is a parse error.
func Timestamp(exchange string, wire int64, fallback *int64) (int64, error) {
	if wire > 0 {
		return wire, nil
	}
	if fallback != nil && *fallback > 0 {
		return *fallback, nil
	}
	return 0, model.ParseFailure(exchange, "message carries no timestamp and none was supplied")
}

// First returns the first positive timestamp, or zero.
func First(ts ...int64) int64 {
	for _, t := range ts {
		if t > 0 {
			return t
		}
	}
	return 0
}
