package revcalc

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConverged is returned when the slider does not settle within
	// tolerance of its target before the nudge limit or timeout.
	ErrNotConverged = errors.New("slider did not converge")

	// ErrUnknownScenario is returned when a scenario name is not in the table.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrInvalidScenario is returned when a scenario row is incomplete.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// ConvergenceError describes an exhausted convergence run.
type ConvergenceError struct {
	Target  int
	Last    int
	Nudges  int
	Elapsed time.Duration
	Reason  string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("slider did not converge to %d: last value %d after %d nudges in %v (%s)",
		e.Target, e.Last, e.Nudges, e.Elapsed, e.Reason)
}

// Is reports ErrNotConverged so callers can match with errors.Is.
func (e *ConvergenceError) Is(target error) bool {
	return target == ErrNotConverged
}
