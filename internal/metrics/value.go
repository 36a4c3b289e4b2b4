// Package metrics derives valuation ratios from raw financial facts.
//
// Every derived figure is a Value: either a finite number or not
// available. Missing inputs and unusable denominators never surface as
// errors from the engine; they surface as NA fields with a reason.
package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/user/roev/internal/magnitude"
)

// Value is an optional finite number.
type Value struct {
	v  float64
	ok bool
}

// NA is the not-available value.
var NA = Value{}

// Of wraps f; NaN and infinities become NA.
func Of(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NA
	}
	return Value{v: f, ok: true}
}

// Ptr converts a nullable float into a Value.
func Ptr(f *float64) Value {
	if f == nil {
		return NA
	}
	return Of(*f)
}

// Available reports whether v holds a number.
func (v Value) Available() bool {
	return v.ok
}

// Float64 returns the number and whether it is available.
func (v Value) Float64() (float64, bool) {
	return v.v, v.ok
}

// OrZero returns the number, or 0 when not available.
func (v Value) OrZero() float64 {
	if !v.ok {
		return 0
	}
	return v.v
}

// Pointer returns nil for NA.
func (v Value) Pointer() *float64 {
	if !v.ok {
		return nil
	}
	f := v.v
	return &f
}

// Round rounds half away from zero to the given number of places.
func (v Value) Round(places int32) Value {
	if !v.ok {
		return NA
	}
	f, _ := decimal.NewFromFloat(v.v).Round(places).Float64()
	return Of(f)
}

// String renders two decimals, or "N/A".
func (v Value) String() string {
	if !v.ok {
		return magnitude.NotAvailable
	}
	return decimal.NewFromFloat(v.v).StringFixed(2)
}

// Compact renders with a magnitude marker, or "N/A".
func (v Value) Compact() string {
	if !v.ok {
		return magnitude.NotAvailable
	}
	return magnitude.Format(v.v)
}

// MarshalJSON writes the value rounded to two places, or "N/A".
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return json.Marshal(magnitude.NotAvailable)
	}
	return []byte(v.Round(2).raw()), nil
}

func (v Value) raw() string {
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// UnmarshalJSON accepts numbers, null, "N/A" and magnitude strings such
// as "1.5B".
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = NA
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == magnitude.NotAvailable || s == "" {
			*v = NA
			return nil
		}
		f, err := magnitude.ParseString(s)
		if err != nil {
			return err
		}
		*v = Of(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	*v = Of(f)
	return nil
}
