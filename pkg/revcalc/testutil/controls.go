// Package testutil provides fakes for exercising the journey without a
// browser: simulated slider controls, a scriptable driver surface and a
// simulated revenue calculator built on it.
package testutil

import (
	"context"
	"errors"
	"time"

	"github.com/thesyncim/revcalc/pkg/revcalc/internal"
)

// ErrControlFailed is returned by a SimulatedControl once FailAfter reads
// have been served.
var ErrControlFailed = errors.New("simulated control failure")

// SimulatedControl is a slider whose response to a nudge is scripted.
// It satisfies revcalc.Control. It is not safe for concurrent use.
type SimulatedControl struct {
	// Current is the control's true value.
	Current int

	// Min and Max clamp the value.
	Min, Max int

	// Gain converts a nudge delta into a value change.
	Gain func(delta int) int

	// Lag makes reads report the value from Lag nudges ago, modelling a
	// page that renders late.
	Lag int

	// Clock, if set, is advanced by PerNudge on every nudge.
	Clock    *internal.MockClock
	PerNudge time.Duration

	// FailAfter, if positive, makes every read after that many fail.
	FailAfter int

	Nudges  []int
	Reads   int
	history []int
}

// IdealControl moves by exactly the nudge delta per nudge.
func IdealControl(start int) *SimulatedControl {
	return &SimulatedControl{
		Current: start,
		Min:     0,
		Max:     1 << 30,
		Gain:    func(delta int) int { return delta },
	}
}

// ScaledControl moves by delta*unitsPerPixel, like a slider whose track
// maps one pixel to several units.
func ScaledControl(start, unitsPerPixel int) *SimulatedControl {
	c := IdealControl(start)
	c.Gain = func(delta int) int { return delta * unitsPerPixel }
	return c
}

// StuckControl never moves.
func StuckControl(start int) *SimulatedControl {
	c := IdealControl(start)
	c.Gain = func(int) int { return 0 }
	return c
}

// OvershootControl moves by up for every positive nudge and by down for
// every negative one, regardless of the delta's magnitude.
func OvershootControl(start, up, down int) *SimulatedControl {
	c := IdealControl(start)
	c.Gain = func(delta int) int {
		if delta > 0 {
			return up
		}
		return down
	}
	return c
}

// LaggingControl reports values lag nudges late.
func LaggingControl(start, lag int) *SimulatedControl {
	c := IdealControl(start)
	c.Lag = lag
	return c
}

// Value returns the (possibly lagged) value.
func (c *SimulatedControl) Value(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.FailAfter > 0 && c.Reads >= c.FailAfter {
		return 0, ErrControlFailed
	}
	c.Reads++

	if c.Lag > 0 && len(c.history) > 0 {
		i := len(c.history) - c.Lag
		if i < 0 {
			i = 0
		}
		return c.history[i], nil
	}
	return c.Current, nil
}

// Nudge applies the scripted gain.
func (c *SimulatedControl) Nudge(ctx context.Context, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.history = append(c.history, c.Current)
	c.Nudges = append(c.Nudges, delta)

	c.Current += c.Gain(delta)
	if c.Current < c.Min {
		c.Current = c.Min
	}
	if c.Current > c.Max {
		c.Current = c.Max
	}
	if c.Clock != nil {
		c.Clock.Advance(c.PerNudge)
	}
	return nil
}
