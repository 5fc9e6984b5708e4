package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thesyncim/revcalc/pkg/revcalc"
	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
)

// clearPresses is how many Backspace presses follow clearing the slider
// input; the field holds at most four digits.
const clearPresses = 5

// RevenuePage is the revenue calculator.
type RevenuePage struct {
	surface driver.Surface
	slider  *revcalc.Slider
	logger  *zap.Logger
}

// NewRevenuePage binds the calculator actions to a surface. The slider
// carries the stepping policy used by MoveSlider.
func NewRevenuePage(surface driver.Surface, slider *revcalc.Slider, logger *zap.Logger) *RevenuePage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevenuePage{surface: surface, slider: slider, logger: logger.Named("revenue")}
}

// sliderControl adapts the slider thumb to revcalc.Control: nudges are
// horizontal drags in pixels, reads come from the thumb's range input.
type sliderControl struct {
	surface driver.Surface
}

func (c sliderControl) Value(ctx context.Context) (int, error) {
	raw, err := c.surface.Attribute(ctx, SliderThumbInput, "value")
	if err != nil {
		return 0, err
	}
	return revcalc.ParseValue(raw)
}

func (c sliderControl) Nudge(ctx context.Context, delta int) error {
	return c.surface.Drag(ctx, SliderThumb, delta, 0)
}

// MoveSlider drags the slider until it settles near target and checks
// whether it landed exactly on it.
func (p *RevenuePage) MoveSlider(ctx context.Context, target int) (revcalc.Check, error) {
	res, err := p.slider.Converge(ctx, sliderControl{surface: p.surface}, target)
	if err != nil {
		return revcalc.Check{}, fmt.Errorf("move slider to %d: %w", target, err)
	}
	p.logger.Debug("slider converged",
		zap.Int("target", res.Target),
		zap.Int("final", res.Final),
		zap.Int("nudges", res.Nudges))
	return res.Check(), nil
}

// FillSliderInput replaces the slider input's text with value and checks
// that the slider itself now reports exactly value.
func (p *RevenuePage) FillSliderInput(ctx context.Context, value string) (revcalc.Check, error) {
	if err := p.surface.Fill(ctx, SliderValueInput, "", true); err != nil {
		return revcalc.Check{}, fmt.Errorf("clear slider input: %w", err)
	}
	for i := 0; i < clearPresses; i++ {
		if err := p.surface.PressKey(ctx, driver.KeyBackspace); err != nil {
			return revcalc.Check{}, fmt.Errorf("clear slider input: %w", err)
		}
	}
	if err := p.surface.Fill(ctx, SliderValueInput, value, false); err != nil {
		return revcalc.Check{}, fmt.Errorf("fill slider input: %w", err)
	}

	current, err := p.surface.Attribute(ctx, SliderThumbInput, "value")
	if err != nil {
		return revcalc.Check{}, fmt.Errorf("read slider value: %w", err)
	}
	return revcalc.Compare(revcalc.CheckSliderInput, value, current), nil
}

// SelectCPT scrolls a CPT code's card into view and ticks its checkbox.
// Codes are not validated; an unknown code fails with
// driver.ErrElementNotFound.
func (p *RevenuePage) SelectCPT(ctx context.Context, code string) error {
	if err := p.surface.ScrollTo(ctx, CPTBox(code)); err != nil {
		return fmt.Errorf("select CPT-%s: %w", code, err)
	}
	if err := p.surface.Click(ctx, CPTCheckbox(code)); err != nil {
		return fmt.Errorf("select CPT-%s: %w", code, err)
	}
	p.logger.Debug("selected cpt", zap.String("code", code))
	return nil
}

// CheckTotal compares the displayed total recurring reimbursement with
// expected, exactly as written.
func (p *RevenuePage) CheckTotal(ctx context.Context, expected string) (revcalc.Check, error) {
	current, err := p.surface.Text(ctx, TotalRecurringAmount)
	if err != nil {
		return revcalc.Check{}, fmt.Errorf("read total recurring amount: %w", err)
	}
	return revcalc.Compare(revcalc.CheckTotal, expected, current), nil
}
