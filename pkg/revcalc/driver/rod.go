package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

// rodSession drives one Chromium process through Rod.
type rodSession struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	timeout    time.Duration
	navTimeout time.Duration
	logger     *zap.Logger
}

var rodKeys = map[Key]input.Key{
	KeyBackspace: input.Backspace,
	KeyEnter:     input.Enter,
	KeyTab:       input.Tab,
	KeyEscape:    input.Escape,
}

// openRod launches the browser with the container-friendly flags used for
// headless runs. When no binary is found Rod downloads Chromium.
func openRod(ctx context.Context, b Browser, opts Options) (*rodSession, error) {
	bin, err := findBinary(b, opts.BinPath)
	if err != nil {
		return nil, err
	}

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-gpu")
	if bin != "" {
		l = l.Bin(bin)
	}
	for _, raw := range opts.Flags {
		name, value, hasValue := splitFlag(raw)
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch %s: %v", ErrDriverUnavailable, b, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect to %s: %v", ErrDriverUnavailable, b, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	opts.Logger.Debug("browser session opened",
		zap.String("backend", string(BackendRod)),
		zap.String("browser", string(b)),
		zap.Bool("headless", opts.Headless))

	return &rodSession{
		launcher:   l,
		browser:    browser,
		page:       page,
		timeout:    opts.Timeout,
		navTimeout: opts.NavigationTimeout,
		logger:     opts.Logger,
	}, nil
}

// scoped returns the page bound to ctx and the locator's explicit wait.
// Elements found through it inherit the same deadline.
func (s *rodSession) scoped(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	c, cancel := context.WithTimeout(ctx, d)
	return s.page.Context(c), cancel
}

func (s *rodSession) find(p *rod.Page, loc Locator) (*rod.Element, error) {
	var (
		el  *rod.Element
		err error
	)
	if loc.Kind == KindXPath {
		el, err = p.ElementX(loc.Expr)
	} else {
		el, err = p.Element(loc.Expr)
	}
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
		}
		return nil, classify(err, loc, ErrElementNotFound)
	}
	return el, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p, cancel := s.scoped(ctx, s.navTimeout)
	defer cancel()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

func (s *rodSession) SetWindowSize(ctx context.Context, width, height int) error {
	p, cancel := s.scoped(ctx, s.timeout)
	defer cancel()

	if width <= 0 || height <= 0 {
		return p.SetWindow(&proto.BrowserBounds{WindowState: proto.BrowserWindowStateMaximized})
	}
	return p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

func (s *rodSession) WaitPresent(ctx context.Context, loc Locator) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()
	_, err := s.find(p, loc)
	return err
}

func (s *rodSession) visible(p *rod.Page, loc Locator) (*rod.Element, error) {
	el, err := s.find(p, loc)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, classify(err, loc, ErrTimeout)
	}
	return el, nil
}

func (s *rodSession) WaitVisible(ctx context.Context, loc Locator) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()
	_, err := s.visible(p, loc)
	return err
}

func (s *rodSession) WaitInvisible(ctx context.Context, loc Locator) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	var (
		has bool
		el  *rod.Element
		err error
	)
	if loc.Kind == KindXPath {
		has, el, err = p.HasX(loc.Expr)
	} else {
		has, el, err = p.Has(loc.Expr)
	}
	if err != nil {
		return classify(err, loc, ErrTimeout)
	}
	if !has {
		return nil
	}
	if err := el.WaitInvisible(); err != nil {
		return classify(err, loc, ErrTimeout)
	}
	return nil
}

// clickable waits until the element can take a click and returns the point
// to click at.
func (s *rodSession) clickable(p *rod.Page, loc Locator) (*proto.Point, error) {
	el, err := s.visible(p, loc)
	if err != nil {
		return nil, err
	}
	if err := el.WaitEnabled(); err != nil {
		return nil, classify(err, loc, ErrTimeout)
	}
	pt, err := el.WaitInteractable()
	if err != nil {
		return nil, classify(err, loc, ErrTimeout)
	}
	return pt, nil
}

func (s *rodSession) WaitClickable(ctx context.Context, loc Locator) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()
	_, err := s.clickable(p, loc)
	return err
}

func (s *rodSession) ScrollTo(ctx context.Context, loc Locator) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	el, err := s.find(p, loc)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll to %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) Click(ctx context.Context, loc Locator) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	pt, err := s.clickable(p, loc)
	if err != nil {
		return err
	}
	if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMouseMoved, *pt, proto.InputMouseButtonNone, 0); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMousePressed, *pt, proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMouseReleased, *pt, proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

// clear selects the field's content and deletes it.
func (s *rodSession) clear(p *rod.Page, el *rod.Element, loc Locator) error {
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text in %s: %w", loc, err)
	}
	if err := typeKey(p, input.Backspace); err != nil {
		return fmt.Errorf("clear %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) InputText(ctx context.Context, loc Locator, text string, clear bool) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	el, err := s.find(p, loc)
	if err != nil {
		return err
	}
	if clear {
		if err := el.Focus(); err != nil {
			return fmt.Errorf("focus %s: %w", loc, err)
		}
		if err := s.clear(p, el, loc); err != nil {
			return err
		}
	}
	if text == "" {
		return nil
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input into %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) Fill(ctx context.Context, loc Locator, text string, clear bool) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	el, err := s.find(p, loc)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus %s: %w", loc, err)
	}
	if clear {
		if err := s.clear(p, el, loc); err != nil {
			return err
		}
	}
	if text == "" {
		return nil
	}
	if err := p.InsertText(text); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) PressKey(ctx context.Context, key Key) error {
	k, ok := rodKeys[key]
	if !ok {
		return fmt.Errorf("press key: unknown key %d", key)
	}
	p, cancel := s.scoped(ctx, s.timeout)
	defer cancel()
	if err := typeKey(p, k); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (s *rodSession) Text(ctx context.Context, loc Locator) (string, error) {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	el, err := s.visible(p, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", loc, err)
	}
	return text, nil
}

func (s *rodSession) Attribute(ctx context.Context, loc Locator, name string) (string, error) {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	el, err := s.visible(p, loc)
	if err != nil {
		return "", err
	}
	prop, err := el.Property(name)
	if err != nil {
		return "", fmt.Errorf("read property %s of %s: %w", name, loc, err)
	}
	if !prop.Nil() {
		return prop.String(), nil
	}
	attr, err := el.Attribute(name)
	if err != nil {
		return "", fmt.Errorf("read attribute %s of %s: %w", name, loc, err)
	}
	if attr == nil {
		return "", nil
	}
	return *attr, nil
}

func (s *rodSession) Drag(ctx context.Context, loc Locator, dx, dy int) error {
	p, cancel := s.scoped(ctx, waitFor(s.timeout, loc))
	defer cancel()

	el, err := s.visible(p, loc)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll to %s: %w", loc, err)
	}
	shape, err := el.Shape()
	if err != nil {
		return fmt.Errorf("measure %s: %w", loc, err)
	}
	from := shape.OnePointInside()
	if from == nil {
		return fmt.Errorf("drag %s: element has no visible area", loc)
	}
	to := proto.Point{X: from.X + float64(dx), Y: from.Y + float64(dy)}

	mid := proto.Point{X: from.X + float64(dx)/2, Y: from.Y + float64(dy)/2}

	if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMouseMoved, *from, proto.InputMouseButtonNone, 0); err != nil {
		return fmt.Errorf("drag %s: %w", loc, err)
	}
	if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMousePressed, *from, proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("drag %s: %w", loc, err)
	}
	for _, pt := range []proto.Point{mid, to} {
		if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMouseMoved, pt, proto.InputMouseButtonLeft, 0); err != nil {
			// Don't leave the button held down for the next operation.
			release := p.Context(context.WithoutCancel(ctx))
			_ = mouseEvent(release, proto.InputDispatchMouseEventTypeMouseReleased, pt, proto.InputMouseButtonLeft, 1)
			return fmt.Errorf("drag %s: %w", loc, err)
		}
	}
	if err := mouseEvent(p, proto.InputDispatchMouseEventTypeMouseReleased, to, proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("drag %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	p, cancel := s.scoped(ctx, s.navTimeout)
	defer cancel()
	return p.Screenshot(true, nil)
}

// Close shuts the browser down and removes its profile directory.
func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	s.logger.Debug("browser session closed", zap.String("backend", string(BackendRod)))
	return nil
}

// Page.Context copies the page without rebinding its Mouse and Keyboard, so
// input goes through the protocol on the scoped page to keep its deadline.

// mouseEvent dispatches one mouse event at pt. button is the button the
// event is about; for moves it is the button held down, if any.
func mouseEvent(p *rod.Page, typ proto.InputDispatchMouseEventType, pt proto.Point, button proto.InputMouseButton, clickCount int) error {
	buttons := 0
	if button == proto.InputMouseButtonLeft && typ != proto.InputDispatchMouseEventTypeMouseReleased {
		buttons = 1
	}
	return proto.InputDispatchMouseEvent{
		Type:       typ,
		X:          pt.X,
		Y:          pt.Y,
		Button:     button,
		Buttons:    gson.Int(buttons),
		ClickCount: clickCount,
	}.Call(p)
}

// typeKey presses and releases k.
func typeKey(p *rod.Page, k input.Key) error {
	if err := k.Encode(proto.InputDispatchKeyEventTypeKeyDown, 0).Call(p); err != nil {
		return err
	}
	return k.Encode(proto.InputDispatchKeyEventTypeKeyUp, 0).Call(p)
}
