package revcalc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/thesyncim/revcalc/pkg/revcalc/internal"
)

// Control is a bounded UI control that can be read and nudged.
type Control interface {
	// Value returns the control's current reported value.
	Value(ctx context.Context) (int, error)

	// Nudge moves the control by delta units of gesture (pixels for a
	// dragged slider thumb). The resulting change in value is up to the page.
	Nudge(ctx context.Context, delta int) error
}

// SliderConfig holds the coarse/fine stepping policy.
type SliderConfig struct {
	// Tolerance is the distance from the target under which nudging stops.
	Tolerance int

	// StepUp is applied while the value is below the target. Must be positive.
	StepUp int

	// StepDown is applied while the value is at or above the target.
	// Must be negative.
	StepDown int

	// MaxNudges caps the number of nudges in one convergence run.
	MaxNudges int

	// Timeout bounds one convergence run in wall-clock time.
	// Zero disables the timeout; MaxNudges still applies.
	Timeout time.Duration
}

// DefaultSliderConfig returns the stepping policy the calculator slider
// responds to: coarse +10 steps up, single-unit corrections down.
func DefaultSliderConfig() SliderConfig {
	return SliderConfig{
		Tolerance: 5,
		StepUp:    10,
		StepDown:  -1,
		MaxNudges: 500,
		Timeout:   60 * time.Second,
	}
}

// Validate reports whether the policy can make progress in both directions.
func (c SliderConfig) Validate() error {
	switch {
	case c.Tolerance <= 0:
		return errors.New("slider tolerance must be positive")
	case c.StepUp <= 0:
		return errors.New("slider step up must be positive")
	case c.StepDown >= 0:
		return errors.New("slider step down must be negative")
	case c.MaxNudges <= 0:
		return errors.New("slider nudge limit must be positive")
	case c.Timeout < 0:
		return errors.New("slider timeout must not be negative")
	}
	return nil
}

// Convergence is the result of a completed convergence run.
type Convergence struct {
	Target int
	Final  int
	Nudges int
}

// Matched reports whether the control settled exactly on the target.
func (c Convergence) Matched() bool {
	return c.Final == c.Target
}

// Check converts the result into a slider Check.
func (c Convergence) Check() Check {
	return Compare(CheckSlider, strconv.Itoa(c.Target), strconv.Itoa(c.Final))
}

// Slider converges a Control onto a target value. It keeps no state
// between runs and is safe to reuse.
type Slider struct {
	config SliderConfig
	clock  internal.Clock
}

// NewSlider creates a Slider with the given policy.
// If clock is nil, a MonotonicClock is used.
func NewSlider(config SliderConfig, clock internal.Clock) (*Slider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = internal.MonotonicClock{}
	}
	return &Slider{config: config, clock: clock}, nil
}

// Config returns the slider's stepping policy.
func (s *Slider) Config() SliderConfig {
	return s.config
}

// Converge nudges ctrl until its value is within tolerance of target.
//
// A run that ends within tolerance but off the exact target is not an
// error; the returned Convergence reports it as unmatched. Exhausting the
// nudge limit or the timeout returns a *ConvergenceError.
func (s *Slider) Converge(ctx context.Context, ctrl Control, target int) (Convergence, error) {
	res := Convergence{Target: target}

	current, err := ctrl.Value(ctx)
	if err != nil {
		return res, fmt.Errorf("read slider value: %w", err)
	}
	res.Final = current

	start := s.clock.Now()
	for abs(current-target) >= s.config.Tolerance {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Nudges >= s.config.MaxNudges {
			return res, s.exhausted(res, start, "nudge limit reached")
		}
		if s.config.Timeout > 0 && s.clock.Now().Sub(start) >= s.config.Timeout {
			return res, s.exhausted(res, start, "timeout")
		}

		step := s.config.StepDown
		if current < target {
			step = s.config.StepUp
		}
		if err := ctrl.Nudge(ctx, step); err != nil {
			return res, fmt.Errorf("nudge slider by %d: %w", step, err)
		}
		res.Nudges++

		current, err = ctrl.Value(ctx)
		if err != nil {
			return res, fmt.Errorf("read slider value: %w", err)
		}
		res.Final = current
	}

	return res, nil
}

func (s *Slider) exhausted(res Convergence, start time.Time, reason string) error {
	return &ConvergenceError{
		Target:  res.Target,
		Last:    res.Final,
		Nudges:  res.Nudges,
		Elapsed: s.clock.Now().Sub(start),
		Reason:  reason,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
