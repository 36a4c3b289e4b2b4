package magnitude

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MagnitudeStrings(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.5B", 1.5e9},
		{"2.3M", 2.3e6},
		{"1.2T", 1.2e12},
		{"1,234.5", 1234.5},
		{"  42 ", 42},
		{"-3.1B", -3.1e9},
		{"1,024.5M", 1.0245e9},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestParse_ExactBillions(t *testing.T) {
	got, err := Parse("1.5B")
	require.NoError(t, err)
	assert.Equal(t, 1.5e9, got)
}

func TestParse_NumericPassThrough(t *testing.T) {
	for _, v := range []any{float64(12.5), float32(12.5), int(12), int64(12), uint32(12), json.Number("12.5")} {
		got, err := Parse(v)
		require.NoError(t, err)
		assert.InDelta(t, 12.5, got, 0.5)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []any{"", "   ", "abc", "1.2.3", "N/A", "12x", "B", "NaN", nil, true} {
		_, err := Parse(in)
		require.Error(t, err, "input %v", in)

		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "expected *ParseError for %v", in)
		assert.ErrorIs(t, err, ErrInvalidNumber)
	}
}

// Marker detection is a substring test: a "B" anywhere means billions.
func TestParse_SubstringMarkerHeuristic(t *testing.T) {
	got, err := Parse("B12")
	require.NoError(t, err)
	assert.Equal(t, 12e9, got)

	// "B" wins over "M" because it is tested first; the leftover "M" fails.
	_, err = Parse("1.5BM")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{1.5e9, "1.50B"},
		{999, "999.00"},
		{2.346e6, "2.35M"},
		{1.2e12, "1.20T"},
		{5e14, "500.00T"},
		{0, "0.00"},
		{-1.2e9, "-1200000000.00"},
		{-157e6, "-157000000.00"},
		{-42.5, "-42.50"},
		{"1234.5", "1234.50"},
		{"1.5B", NotAvailable},
		{"", NotAvailable},
		{nil, NotAvailable},
		{math.NaN(), NotAvailable},
		{math.Inf(1), NotAvailable},
		{struct{}{}, NotAvailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in), "Format(%v)", tt.in)
	}
}

func TestFormatParse_RoundTrip(t *testing.T) {
	values := []float64{1, 999, 1234.567, 1e6, 1.005e6, 7.777e8, 1e9, 3.14159e10, 9.99e11, 1e12, 4.2e13}
	for _, x := range values {
		got, err := Parse(Format(x))
		require.NoError(t, err, "x=%v", x)
		assert.InEpsilon(t, x, got, 0.01, "round trip of %v via %q", x, Format(x))
	}
}
