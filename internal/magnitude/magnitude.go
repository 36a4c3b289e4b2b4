// Package magnitude converts between human-readable, magnitude-suffixed
// numbers ("1.5B", "2.3M", "1.2T", "1,234.5") and float64 values.
//
// Marker detection is a substring test, so any string containing "B"
// is read as billions, not only strings that end in it. Values scraped
// from quote pages are formatted that way, which is what the heuristic
// was written for.
package magnitude

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NotAvailable is the sentinel rendered for values that cannot be shown.
const NotAvailable = "N/A"

// ErrInvalidNumber is wrapped by every ParseError.
var ErrInvalidNumber = errors.New("invalid number")

// ParseError reports an input that could not be read as a number.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q as number: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type scale struct {
	marker string
	factor float64
}

// Markers are tested in this order.
var parseScales = []scale{
	{"B", 1e9},
	{"M", 1e6},
	{"T", 1e12},
}

// Largest first.
var formatScales = []scale{
	{"T", 1e12},
	{"B", 1e9},
	{"M", 1e6},
}

// Parse returns numeric values unchanged and reads strings as decimal
// numbers with an optional magnitude marker and thousands separators.
func Parse(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return ParseString(v.String())
	case string:
		return ParseString(v)
	case nil:
		return 0, &ParseError{Input: "<nil>", Err: fmt.Errorf("%w: no value", ErrInvalidNumber)}
	default:
		return 0, &ParseError{Input: fmt.Sprint(v), Err: fmt.Errorf("%w: unsupported type %T", ErrInvalidNumber, v)}
	}
}

// ParseString parses a textual number such as "1.5B" or "1,234.5".
func ParseString(s string) (float64, error) {
	text := strings.TrimSpace(s)
	factor := 1.0
	for _, sc := range parseScales {
		if strings.Contains(text, sc.marker) {
			text = strings.ReplaceAll(text, sc.marker, "")
			factor = sc.factor
			break
		}
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))

	if text == "" {
		return 0, &ParseError{Input: s, Err: fmt.Errorf("%w: empty", ErrInvalidNumber)}
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &ParseError{Input: s, Err: fmt.Errorf("%w: %v", ErrInvalidNumber, err)}
	}

	n *= factor
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &ParseError{Input: s, Err: fmt.Errorf("%w: not finite", ErrInvalidNumber)}
	}

	return n, nil
}

// Format renders value with two decimals and the largest applicable
// magnitude marker. Scales apply to the signed value, so negatives are
// rendered in full without a marker. Anything that cannot be read as a finite number
// renders as NotAvailable.
func Format(value any) string {
	n, ok := coerce(value)
	if !ok {
		return NotAvailable
	}

	for _, sc := range formatScales {
		if n >= sc.factor {
			return strconv.FormatFloat(n/sc.factor, 'f', 2, 64) + sc.marker
		}
	}
	return strconv.FormatFloat(n, 'f', 2, 64)
}

// coerce accepts numeric types and plain decimal strings only; marker
// strings are not coerced.
func coerce(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case nil:
		return 0, false
	default:
		f, err := Parse(v)
		if err != nil {
			return 0, false
		}
		n = f
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
