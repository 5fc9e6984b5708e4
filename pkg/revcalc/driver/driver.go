// Package driver opens browser sessions and exposes the element
// interaction surface the page action sets are written against.
//
// Two backends implement the surface: Rod (default) and chromedp. Both speak
// the Chrome DevTools Protocol, so only Chromium-based browsers are supported.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrElementNotFound means a locator matched nothing before the explicit
	// wait ran out.
	ErrElementNotFound = errors.New("element not found")

	// ErrTimeout means an element was found but never reached the awaited
	// state (visible, invisible, clickable) in time.
	ErrTimeout = errors.New("wait timed out")

	// ErrUnsupportedBrowser is returned by Open for a browser name no backend
	// can drive. It is fatal: retrying cannot help.
	ErrUnsupportedBrowser = errors.New("unsupported browser")

	// ErrUnsupportedBackend is returned by Open for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported driver backend")

	// ErrDriverUnavailable means the browser binary could not be located,
	// downloaded or launched. It is fatal.
	ErrDriverUnavailable = errors.New("browser driver unavailable")
)

// IsFatal reports whether err comes from a condition that a fresh session
// would hit again.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnsupportedBrowser) ||
		errors.Is(err, ErrUnsupportedBackend) ||
		errors.Is(err, ErrDriverUnavailable)
}

// LocatorKind selects how a locator expression is interpreted.
type LocatorKind int

const (
	// KindXPath interprets the expression as an XPath.
	KindXPath LocatorKind = iota
	// KindCSS interprets the expression as a CSS selector.
	KindCSS
)

// String returns the kind's name.
func (k LocatorKind) String() string {
	switch k {
	case KindXPath:
		return "xpath"
	case KindCSS:
		return "css"
	default:
		return "unknown"
	}
}

// Locator identifies an element on the page.
type Locator struct {
	Expr string
	Kind LocatorKind

	// WaitFactor multiplies the session's explicit wait for this locator.
	// Values below 1 mean 1.
	WaitFactor int
}

// XPath returns an XPath locator.
func XPath(expr string) Locator {
	return Locator{Expr: expr, Kind: KindXPath}
}

// CSS returns a CSS selector locator.
func CSS(expr string) Locator {
	return Locator{Expr: expr, Kind: KindCSS}
}

// Patient returns a copy of l whose explicit wait is multiplied by factor.
func (l Locator) Patient(factor int) Locator {
	l.WaitFactor = factor
	return l
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Kind, l.Expr)
}

// waitFor scales the explicit wait by the locator's factor.
func waitFor(base time.Duration, l Locator) time.Duration {
	if l.WaitFactor < 1 {
		return base
	}
	return base * time.Duration(l.WaitFactor)
}

// Key is a non-printable keyboard key.
type Key int

const (
	// KeyBackspace deletes the character before the caret.
	KeyBackspace Key = iota
	// KeyEnter submits or confirms.
	KeyEnter
	// KeyTab moves focus to the next element.
	KeyTab
	// KeyEscape dismisses.
	KeyEscape
)

// String returns the key's name.
func (k Key) String() string {
	switch k {
	case KeyBackspace:
		return "Backspace"
	case KeyEnter:
		return "Enter"
	case KeyTab:
		return "Tab"
	case KeyEscape:
		return "Escape"
	default:
		return "Unknown"
	}
}

// Surface is the element interaction layer. Every element operation first
// waits for the element (presence, visibility or clickability) for at most
// the session's explicit wait scaled by the locator's WaitFactor.
type Surface interface {
	// Navigate loads url in the session's page and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// SetWindowSize resizes the viewport. A zero width or height maximizes
	// the window instead.
	SetWindowSize(ctx context.Context, width, height int) error

	WaitPresent(ctx context.Context, loc Locator) error
	WaitVisible(ctx context.Context, loc Locator) error
	// WaitInvisible succeeds immediately when nothing matches loc.
	WaitInvisible(ctx context.Context, loc Locator) error
	WaitClickable(ctx context.Context, loc Locator) error

	// ScrollTo scrolls the element into view.
	ScrollTo(ctx context.Context, loc Locator) error

	// Click waits for the element to be clickable and clicks it.
	Click(ctx context.Context, loc Locator) error

	// InputText types text into a field, optionally clearing it first.
	InputText(ctx context.Context, loc Locator, text string, clear bool) error

	// Fill focuses the field and sends text as key input to it, optionally
	// clearing it first. Use it for controlled inputs that ignore value
	// assignment.
	Fill(ctx context.Context, loc Locator, text string, clear bool) error

	// PressKey presses a key on whatever element has focus.
	PressKey(ctx context.Context, key Key) error

	// Text returns the visible text of the element.
	Text(ctx context.Context, loc Locator) (string, error)

	// Attribute returns the element's live property called name, falling
	// back to the HTML attribute when the property is unset.
	Attribute(ctx context.Context, loc Locator, name string) (string, error)

	// Drag presses the mouse on the element, moves it by (dx, dy) pixels and
	// releases it.
	Drag(ctx context.Context, loc Locator, dx, dy int) error

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is a Surface bound to one browser process.
// Close must be called on every path to avoid orphaned browsers.
type Session interface {
	Surface
	Close() error
}

// classify maps a failed wait onto the package's sentinels. Deadline
// overruns become sentinel; anything else keeps its own identity.
func classify(err error, loc Locator, sentinel error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", sentinel, loc, err)
	}
	return fmt.Errorf("%s: %w", loc, err)
}
