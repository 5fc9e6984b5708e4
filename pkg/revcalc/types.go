// Package revcalc implements the verification core of the revenue
// calculator journey: the slider convergence loop, value checks and the
// scenario table that ties journey inputs to the expected total.
package revcalc

import (
	"fmt"
	"strconv"
	"strings"
)

// CheckName identifies which verification produced a Check.
type CheckName string

const (
	// CheckSlider compares the converged slider value with its target.
	CheckSlider CheckName = "slider"
	// CheckSliderInput compares the slider value with the text typed into
	// the companion input field.
	CheckSliderInput CheckName = "slider-input"
	// CheckTotal compares the displayed total recurring reimbursement with
	// the scenario's expected literal.
	CheckTotal CheckName = "total-recurring"
)

// Check is the outcome of one value comparison. A mismatch is data, not an
// error: the journey records it and keeps going.
type Check struct {
	Name     CheckName `json:"name"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
	Matched  bool      `json:"matched"`
}

// Compare builds a Check using exact byte-for-byte equality. No whitespace
// or numeric normalization is applied.
func Compare(name CheckName, expected, actual string) Check {
	return Check{
		Name:     name,
		Expected: expected,
		Actual:   actual,
		Matched:  expected == actual,
	}
}

// String renders the check the way the journey prints it.
func (c Check) String() string {
	if c.Matched {
		return fmt.Sprintf("Expected: %s, matched with current value: %s", c.Expected, c.Actual)
	}
	return fmt.Sprintf("Expected: %s, but got: %s", c.Expected, c.Actual)
}

// ParseValue parses a control reading or target given as a numeric string.
// Surrounding whitespace is ignored; anything else must be a base-10 integer.
func ParseValue(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", s, err)
	}
	return v, nil
}
