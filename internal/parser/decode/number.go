package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"cryptostream/internal/model"
)

// Number is a JSON number that exchanges may send either as a literal or as
// a string. Validation is deferred to the accessors so a bad field can be
// reported with the exchange and field name.
type Number struct {
	raw string
	set bool
}

// NumberOf builds a Number from its textual form.
func NumberOf(s string) Number { return Number{raw: s, set: true} }

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number{raw: s, set: true}
		return nil
	}
	if len(b) == 0 || !(b[0] == '-' || (b[0] >= '0' && b[0] <= '9')) {
		return fmt.Errorf("invalid number %q", b)
	}
	*n = Number{raw: string(b), set: true}
	return nil
}

// IsSet reports whether the field was present and not null.
func (n Number) IsSet() bool { return n.set }

func (n Number) String() string { return n.raw }

func (n Number) decimal() (decimal.Decimal, error) {
	if !n.set || n.raw == "" {
		return decimal.Decimal{}, fmt.Errorf("missing")
	}
	// decimal rejects NaN, Inf and anything that is not a plain number.
	return decimal.NewFromString(n.raw)
}

// finiteFloat converts d, rejecting values outside the float64 range.
func finiteFloat(exchange, field string, n Number, d decimal.Decimal) (float64, error) {
	v := d.InexactFloat64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, model.ParseFailure(exchange, "%s %q overflows float64", field, n.raw)
	}
	return v, nil
}

// Float returns the value of a field that may be negative, such as a funding
// rate.
func Float(exchange, field string, n Number) (float64, error) {
	d, err := n.decimal()
	if err != nil {
		return 0, model.ParseFailure(exchange, "%s %q: %v", field, n.raw, err)
	}
	return finiteFloat(exchange, field, n, d)
}

// NonNegative returns the value of a price or quantity field. Negative
// values are rejected, never clamped.
func NonNegative(exchange, field string, n Number) (float64, error) {
	d, err := n.decimal()
	if err != nil {
		return 0, model.ParseFailure(exchange, "%s %q: %v", field, n.raw, err)
	}
	if d.IsNegative() {
		return 0, model.ParseFailure(exchange, "%s %q is negative", field, n.raw)
	}
	return finiteFloat(exchange, field, n, d)
}

// Int returns an integral field such as a timestamp or sequence number.
func Int(exchange, field string, n Number) (int64, error) {
	if !n.set || n.raw == "" {
		return 0, model.ParseFailure(exchange, "%s missing", field)
	}
	v, err := strconv.ParseInt(n.raw, 10, 64)
	if err != nil {
		return 0, model.ParseFailure(exchange, "%s %q: %v", field, n.raw, err)
	}
	return v, nil
}

// OptionalFloat is Float for fields that may be absent.
func OptionalFloat(exchange, field string, n Number) (*float64, error) {
	if !n.set || n.raw == "" {
		return nil, nil
	}
	v, err := Float(exchange, field, n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
