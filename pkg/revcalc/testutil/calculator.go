package testutil

import (
	"sort"
	"strconv"
	"sync"

	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
	"github.com/thesyncim/revcalc/pkg/revcalc/pages"
)

// CalculatorConfig shapes a simulated revenue calculator.
type CalculatorConfig struct {
	// Start is the slider value when the calculator opens.
	Start int

	// Min and Max bound the slider.
	Min, Max int

	// UnitsPerPixel is how far one pixel of drag moves the slider.
	UnitsPerPixel int

	Rates []Rate

	// ReadbackSuffix is appended to the slider's reported value once the
	// input field has been edited, modelling formatting drift.
	ReadbackSuffix string
}

// DefaultCalculatorConfig mirrors the fixture page: a 1000px track over
// 0..2000 patients starting at 200.
func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{
		Start:         200,
		Min:           0,
		Max:           2000,
		UnitsPerPixel: 2,
		Rates:         DefaultRates,
	}
}

// Calculator is a FakeSurface that behaves like the marketing site:
// navigating shows the homepage, whose link opens the calculator.
type Calculator struct {
	*FakeSurface
	cfg CalculatorConfig

	mu       sync.Mutex
	value    int
	field    string
	edited   bool
	selected map[string]bool
}

// NewCalculator returns a simulated site. Call Navigate to load it.
func NewCalculator(cfg CalculatorConfig) *Calculator {
	c := &Calculator{
		FakeSurface: NewFakeSurface(),
		cfg:         cfg,
		selected:    make(map[string]bool),
	}
	c.OnNavigate = func(string) { c.showHome() }
	c.OnKey = c.key
	return c
}

// Value returns the slider's true value.
func (c *Calculator) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Selected returns the ticked CPT codes in ascending order.
func (c *Calculator) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := make([]string, 0, len(c.selected))
	for code, on := range c.selected {
		if on {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func (c *Calculator) showHome() {
	c.Reset()
	c.Set(pages.RevenueCalculatorLink, &Element{
		Text:    "Revenue Calculator",
		OnClick: c.showCalculator,
	})
}

func (c *Calculator) showCalculator() {
	c.Reset()

	c.mu.Lock()
	c.value = c.cfg.Start
	c.field = strconv.Itoa(c.cfg.Start)
	c.edited = false
	c.selected = make(map[string]bool)
	c.mu.Unlock()

	c.Set(pages.SliderThumb, &Element{OnDrag: c.drag})
	c.Set(pages.SliderThumbInput, &Element{})
	c.Set(pages.SliderValueInput, &Element{OnFill: c.fill})
	c.Set(pages.TotalRecurringAmount, &Element{})
	for _, r := range c.cfg.Rates {
		code := r.Code
		c.Set(pages.CPTBox(code), &Element{Text: "CPT-" + code})
		c.Set(pages.CPTCheckbox(code), &Element{OnClick: func() { c.toggle(code) }})
	}
	c.render()
}

func (c *Calculator) clamp(v int) int {
	if v < c.cfg.Min {
		return c.cfg.Min
	}
	if v > c.cfg.Max {
		return c.cfg.Max
	}
	return v
}

func (c *Calculator) drag(dx, _ int) {
	c.mu.Lock()
	c.value = c.clamp(c.value + dx*c.cfg.UnitsPerPixel)
	c.field = strconv.Itoa(c.value)
	c.mu.Unlock()
	c.render()
}

func (c *Calculator) fill(text string, clear bool) {
	c.mu.Lock()
	if clear {
		c.field = ""
	}
	c.field += text
	c.edited = true
	if v, err := strconv.Atoi(c.field); err == nil {
		c.value = c.clamp(v)
	}
	c.mu.Unlock()
	c.render()
}

// key treats every Backspace as aimed at the slider input, the only text
// field on the page.
func (c *Calculator) key(k driver.Key) {
	if k != driver.KeyBackspace {
		return
	}
	c.mu.Lock()
	if n := len(c.field); n > 0 {
		c.field = c.field[:n-1]
		if v, err := strconv.Atoi(c.field); err == nil {
			c.value = c.clamp(v)
		}
	}
	c.mu.Unlock()
	c.render()
}

func (c *Calculator) toggle(code string) {
	c.mu.Lock()
	c.selected[code] = !c.selected[code]
	c.mu.Unlock()
	c.render()
}

// render pushes the calculator state into the page's elements.
func (c *Calculator) render() {
	c.mu.Lock()
	value := c.value
	field := c.field
	reported := strconv.Itoa(value)
	if c.edited {
		reported += c.cfg.ReadbackSuffix
	}
	var codes []string
	for code, on := range c.selected {
		if on {
			codes = append(codes, code)
		}
	}
	c.mu.Unlock()

	// Every selectable code comes from the rate card.
	total, _ := MonthlyTotal(c.cfg.Rates, value, codes)

	c.Update(pages.SliderThumbInput, func(el *Element) { el.Props["value"] = reported })
	c.Update(pages.SliderValueInput, func(el *Element) { el.Props["value"] = field })
	c.Update(pages.TotalRecurringAmount, func(el *Element) { el.Text = FormatTotal(total) })
}
