package metrics

import (
	"errors"
	"fmt"
)

// ErrMissingIdentifier rejects facts that carry no entity symbol.
var ErrMissingIdentifier = errors.New("facts have no identifier")

// ErrUnusableDenominator marks a present input that a formula cannot
// divide by (zero, or not positive where positivity is required).
var ErrUnusableDenominator = errors.New("denominator unusable")

// MissingInputError names an absent upstream fact.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %s", e.Field)
}

// UnusableInputError names the fact that could not serve as a divisor.
type UnusableInputError struct {
	Field string
	Value float64
}

func (e *UnusableInputError) Error() string {
	return fmt.Sprintf("unusable %s: %g", e.Field, e.Value)
}

func (e *UnusableInputError) Unwrap() error {
	return ErrUnusableDenominator
}
