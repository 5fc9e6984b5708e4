package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/thesyncim/revcalc/pkg/revcalc/driver"
)

// Element is one element of a FakeSurface's page.
type Element struct {
	Text     string
	Props    map[string]string
	Hidden   bool
	Disabled bool

	OnClick func()
	OnDrag  func(dx, dy int)
	// OnFill replaces the default "append to props[value]" behavior of
	// Fill and InputText.
	OnFill func(text string, clear bool)
}

// FakeSurface is an in-memory driver.Session. Elements are keyed by
// locator expression; anything not registered is not found.
type FakeSurface struct {
	mu       sync.Mutex
	elements map[string]*Element
	failures map[string]error

	// OnNavigate runs after every successful Navigate.
	OnNavigate func(url string)
	// OnKey runs for every key press.
	OnKey func(key driver.Key)

	URL    string
	Width  int
	Height int
	Calls  []string
	Keys   []driver.Key
	Shot   []byte
	closed int
}

// NewFakeSurface returns an empty page.
func NewFakeSurface() *FakeSurface {
	return &FakeSurface{
		elements: make(map[string]*Element),
		failures: make(map[string]error),
		Shot:     []byte("\x89PNG fake"),
	}
}

// Set registers el under loc, replacing any previous element.
func (f *FakeSurface) Set(loc driver.Locator, el *Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if el.Props == nil {
		el.Props = make(map[string]string)
	}
	f.elements[loc.Expr] = el
}

// Update runs fn on the element registered under loc while holding the
// surface's lock. It is a no-op when nothing is registered.
func (f *FakeSurface) Update(loc driver.Locator, fn func(el *Element)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if el, ok := f.elements[loc.Expr]; ok {
		fn(el)
	}
}

// Remove unregisters loc.
func (f *FakeSurface) Remove(loc driver.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, loc.Expr)
}

// Reset removes every element.
func (f *FakeSurface) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements = make(map[string]*Element)
}

// Get returns the element registered under loc, or nil.
func (f *FakeSurface) Get(loc driver.Locator) *Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elements[loc.Expr]
}

// FailOn makes every call to the named operation ("Navigate", "Click",
// ...) return err.
func (f *FakeSurface) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Closed reports how many times Close was called.
func (f *FakeSurface) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// begin records the call and returns any scripted failure.
func (f *FakeSurface) begin(ctx context.Context, op string, loc *driver.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	call := op
	if loc != nil {
		call = op + " " + loc.String()
	}
	f.Calls = append(f.Calls, call)
	return f.failures[op]
}

func (f *FakeSurface) lookup(loc driver.Locator) (*Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[loc.Expr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrElementNotFound, loc)
	}
	return el, nil
}

func (f *FakeSurface) visible(loc driver.Locator) (*Element, error) {
	el, err := f.lookup(loc)
	if err != nil {
		return nil, err
	}
	if el.Hidden {
		return nil, fmt.Errorf("%w: %s is not visible", driver.ErrTimeout, loc)
	}
	return el, nil
}

func (f *FakeSurface) clickable(loc driver.Locator) (*Element, error) {
	el, err := f.visible(loc)
	if err != nil {
		return nil, err
	}
	if el.Disabled {
		return nil, fmt.Errorf("%w: %s is not clickable", driver.ErrTimeout, loc)
	}
	return el, nil
}

func (f *FakeSurface) Navigate(ctx context.Context, url string) error {
	if err := f.begin(ctx, "Navigate", nil); err != nil {
		return err
	}
	f.mu.Lock()
	f.URL = url
	hook := f.OnNavigate
	f.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return nil
}

func (f *FakeSurface) SetWindowSize(ctx context.Context, width, height int) error {
	if err := f.begin(ctx, "SetWindowSize", nil); err != nil {
		return err
	}
	f.mu.Lock()
	f.Width, f.Height = width, height
	f.mu.Unlock()
	return nil
}

func (f *FakeSurface) WaitPresent(ctx context.Context, loc driver.Locator) error {
	if err := f.begin(ctx, "WaitPresent", &loc); err != nil {
		return err
	}
	_, err := f.lookup(loc)
	return err
}

func (f *FakeSurface) WaitVisible(ctx context.Context, loc driver.Locator) error {
	if err := f.begin(ctx, "WaitVisible", &loc); err != nil {
		return err
	}
	_, err := f.visible(loc)
	return err
}

func (f *FakeSurface) WaitInvisible(ctx context.Context, loc driver.Locator) error {
	if err := f.begin(ctx, "WaitInvisible", &loc); err != nil {
		return err
	}
	el, err := f.lookup(loc)
	if err != nil || el.Hidden {
		return nil
	}
	return fmt.Errorf("%w: %s is still visible", driver.ErrTimeout, loc)
}

func (f *FakeSurface) WaitClickable(ctx context.Context, loc driver.Locator) error {
	if err := f.begin(ctx, "WaitClickable", &loc); err != nil {
		return err
	}
	_, err := f.clickable(loc)
	return err
}

func (f *FakeSurface) ScrollTo(ctx context.Context, loc driver.Locator) error {
	if err := f.begin(ctx, "ScrollTo", &loc); err != nil {
		return err
	}
	_, err := f.lookup(loc)
	return err
}

func (f *FakeSurface) Click(ctx context.Context, loc driver.Locator) error {
	if err := f.begin(ctx, "Click", &loc); err != nil {
		return err
	}
	el, err := f.clickable(loc)
	if err != nil {
		return err
	}
	if el.OnClick != nil {
		el.OnClick()
	}
	return nil
}

func (f *FakeSurface) fill(ctx context.Context, op string, loc driver.Locator, text string, clear bool) error {
	if err := f.begin(ctx, op, &loc); err != nil {
		return err
	}
	el, err := f.lookup(loc)
	if err != nil {
		return err
	}
	if el.OnFill != nil {
		el.OnFill(text, clear)
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if clear {
		el.Props["value"] = ""
	}
	el.Props["value"] += text
	return nil
}

func (f *FakeSurface) InputText(ctx context.Context, loc driver.Locator, text string, clear bool) error {
	return f.fill(ctx, "InputText", loc, text, clear)
}

func (f *FakeSurface) Fill(ctx context.Context, loc driver.Locator, text string, clear bool) error {
	return f.fill(ctx, "Fill", loc, text, clear)
}

func (f *FakeSurface) PressKey(ctx context.Context, key driver.Key) error {
	if err := f.begin(ctx, "PressKey", nil); err != nil {
		return err
	}
	f.mu.Lock()
	f.Keys = append(f.Keys, key)
	hook := f.OnKey
	f.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return nil
}

func (f *FakeSurface) Text(ctx context.Context, loc driver.Locator) (string, error) {
	if err := f.begin(ctx, "Text", &loc); err != nil {
		return "", err
	}
	el, err := f.visible(loc)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return el.Text, nil
}

func (f *FakeSurface) Attribute(ctx context.Context, loc driver.Locator, name string) (string, error) {
	if err := f.begin(ctx, "Attribute", &loc); err != nil {
		return "", err
	}
	el, err := f.visible(loc)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return el.Props[name], nil
}

func (f *FakeSurface) Drag(ctx context.Context, loc driver.Locator, dx, dy int) error {
	if err := f.begin(ctx, "Drag", &loc); err != nil {
		return err
	}
	el, err := f.visible(loc)
	if err != nil {
		return err
	}
	if el.OnDrag != nil {
		el.OnDrag(dx, dy)
	}
	return nil
}

func (f *FakeSurface) Screenshot(ctx context.Context) ([]byte, error) {
	if err := f.begin(ctx, "Screenshot", nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Shot, nil
}

// Close counts the call; a FakeSurface stays usable afterwards.
func (f *FakeSurface) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.failures["Close"]
}
